// Package export renders the canonical player set as a JSON artifact
// and writes it to the configured blob store.
package export

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// Document is the wire shape of the export artifact.
type Document struct {
	Players []ratings.Player `json:"players"`
}

// Marshal renders the document. A nil slice still serializes as an
// empty list so consumers always see the players key.
func (d Document) Marshal() ([]byte, error) {
	if d.Players == nil {
		d.Players = []ratings.Player{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export document: %w", err)
	}
	return data, nil
}

// MergeByCategory replaces one category's players inside an existing
// document with the incoming slice, preserving the positions of all
// other categories. Replaced players keep the document's original
// ordering; net-new players append after them.
func MergeByCategory(existing Document, incoming []ratings.Player, category ratings.Category) Document {
	kept := make([]ratings.Player, 0, len(existing.Players))
	insertAt := -1
	for _, p := range existing.Players {
		if p.Category == category {
			if insertAt == -1 {
				insertAt = len(kept)
			}
			continue
		}
		kept = append(kept, p)
	}
	if insertAt == -1 {
		insertAt = len(kept)
	}
	merged := make([]ratings.Player, 0, len(kept)+len(incoming))
	merged = append(merged, kept[:insertAt]...)
	merged = append(merged, incoming...)
	merged = append(merged, kept[insertAt:]...)
	return Document{Players: merged}
}

// Exporter snapshots the store into a blob artifact.
type Exporter struct {
	store  ratings.Store
	blobs  ratings.BlobStore
	logger *zap.Logger
	path   string
}

// New constructs an Exporter writing to the given blob path.
func New(store ratings.Store, blobs ratings.BlobStore, logger *zap.Logger, path string) (*Exporter, error) {
	if path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	return &Exporter{store: store, blobs: blobs, logger: logger, path: path}, nil
}

// Export writes the full canonical player set and returns the artifact URI.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	players, err := e.store.AllPlayers(ctx)
	if err != nil {
		return "", fmt.Errorf("load players for export: %w", err)
	}
	data, err := Document{Players: players}.Marshal()
	if err != nil {
		return "", err
	}
	uri, err := e.blobs.PutObject(ctx, e.path, "application/json", data)
	if err != nil {
		return "", fmt.Errorf("write export artifact: %w", err)
	}
	e.logger.Info("export written",
		zap.String("uri", uri),
		zap.Int("players", len(players)),
	)
	return uri, nil
}
