// Package reconcile merges crawl output into the canonical player and
// team sets.
package reconcile

import (
	"context"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// Summary reports what one reconciliation run did.
type Summary struct {
	Category ratings.Category
	Players  int
	Teams    int
	Dropped  int
}

// Engine owns all writes to the canonical Player and Team records.
//
// Each category is refreshed with full-replace semantics: the source
// rosters are the ground truth per run, so the newest crawl output
// replaces the entire canonical slice for that category. This is a
// deliberate design choice, not an incremental diff.
type Engine struct {
	store  ratings.Store
	logger *zap.Logger
}

// New constructs an Engine.
func New(store ratings.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Reconcile dedupes one category's crawl result and replaces the
// canonical set for that category.
//
// Safety trip: a crawl that yields zero players while the stored set is
// non-empty is treated as a likely transient source failure (a blocked
// or challenge page mistaken for an empty roster). The replace is
// refused, the stored data left untouched, and ErrEmptyCrawlAborted
// returned for the operator to see.
func (e *Engine) Reconcile(ctx context.Context, result ratings.CategoryResult) (Summary, error) {
	players, dropped := dedupePlayers(result.Category, result.Players)
	teams := dedupeTeams(result.Category, result.Teams)

	existing, err := e.store.ListPlayersByCategory(ctx, result.Category)
	if err != nil {
		return Summary{}, fmt.Errorf("inspect existing category %s: %w", result.Category, err)
	}
	if len(players) == 0 && len(existing) > 0 {
		e.logger.Error("crawl returned zero players for populated category, refusing replace",
			zap.String("category", string(result.Category)),
			zap.Int("existing_players", len(existing)),
		)
		return Summary{}, fmt.Errorf("category %s: %w", result.Category, ratings.ErrEmptyCrawlAborted)
	}
	carryTimestamps(players, existing)

	if err := e.store.ReplaceCategory(ctx, result.Category, players, teams); err != nil {
		return Summary{}, fmt.Errorf("replace category %s: %w", result.Category, err)
	}

	summary := Summary{
		Category: result.Category,
		Players:  len(players),
		Teams:    len(teams),
		Dropped:  dropped,
	}
	e.logger.Info("category reconciled",
		zap.String("category", string(summary.Category)),
		zap.Int("players", summary.Players),
		zap.Int("teams", summary.Teams),
		zap.Int("duplicates_merged", summary.Dropped),
	)
	return summary, nil
}

// dedupePlayers collapses duplicate (normalized name, category) keys with
// last-seen-wins in crawl emission order, keeping the first-seen position
// so output order stays stable. Names are normalized here regardless of
// what the crawl filled in; category is forced to the run's category so a
// record can never leak across categories.
func dedupePlayers(category ratings.Category, in []ratings.Player) ([]ratings.Player, int) {
	index := make(map[ratings.PlayerKey]int, len(in))
	out := make([]ratings.Player, 0, len(in))
	dropped := 0
	for _, p := range in {
		p.Category = category
		p.NormalizedName = ratings.NormalizeName(p.Name)
		key := p.Key()
		if at, seen := index[key]; seen {
			out[at] = p
			dropped++
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out, dropped
}

// carryTimestamps keeps the stored ScrapedAt on records whose content is
// unchanged, so re-ingesting an unchanged source yields an identical
// canonical set. Records that differ in any field get the new stamp.
func carryTimestamps(incoming []ratings.Player, existing []ratings.Player) {
	prior := make(map[ratings.PlayerKey]ratings.Player, len(existing))
	for _, p := range existing {
		prior[p.Key()] = p
	}
	for i, p := range incoming {
		old, ok := prior[p.Key()]
		if ok && sameContent(p, old) {
			incoming[i].ScrapedAt = old.ScrapedAt
		}
	}
}

func sameContent(a, b ratings.Player) bool {
	return a.Name == b.Name &&
		a.Team == b.Team &&
		a.Overall == b.Overall &&
		a.Position == b.Position &&
		a.Height == b.Height &&
		a.Partial == b.Partial &&
		maps.Equal(a.Attributes, b.Attributes)
}

func dedupeTeams(category ratings.Category, in []ratings.Team) []ratings.Team {
	seen := make(map[string]struct{}, len(in))
	out := make([]ratings.Team, 0, len(in))
	for _, t := range in {
		t.Category = category
		key := ratings.NormalizeName(t.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
