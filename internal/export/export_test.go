package export

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/ratings"
	storemem "github.com/hoopindex/ratings-pipeline/internal/store/memory"
	blobmem "github.com/hoopindex/ratings-pipeline/internal/storage/memory"
)

func TestExportWritesAllCategories(t *testing.T) {
	ctx := context.Background()
	store := storemem.NewStore()
	require.NoError(t, store.ReplaceCategory(ctx, ratings.CategoryCurrent,
		[]ratings.Player{{Name: "Nikola Jokic", NormalizedName: "nikola jokic", Category: ratings.CategoryCurrent, Team: "Nuggets", Overall: 97}},
		nil,
	))
	require.NoError(t, store.ReplaceCategory(ctx, ratings.CategoryClassic,
		[]ratings.Player{{Name: "Michael Jordan", NormalizedName: "michael jordan", Category: ratings.CategoryClassic, Team: "'95-'96 Bulls", Overall: 99}},
		nil,
	))

	blobs := blobmem.NewBlobStore()
	exporter, err := New(store, blobs, zap.NewNop(), "players.json")
	require.NoError(t, err)

	uri, err := exporter.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory://players.json", uri)

	data, ok := blobs.Object("players.json")
	require.True(t, ok)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Players, 2)
	assert.Equal(t, "Nikola Jokic", doc.Players[0].Name, "current category first")
	assert.Equal(t, "Michael Jordan", doc.Players[1].Name)
}

func TestExportEmptyStoreStillHasPlayersKey(t *testing.T) {
	blobs := blobmem.NewBlobStore()
	exporter, err := New(storemem.NewStore(), blobs, zap.NewNop(), "players.json")
	require.NoError(t, err)

	_, err = exporter.Export(context.Background())
	require.NoError(t, err)

	data, ok := blobs.Object("players.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"players":[]}`, string(data))
}

func TestMergeByCategoryReplacesOneSlice(t *testing.T) {
	existing := Document{Players: []ratings.Player{
		{Name: "Luka Doncic", Category: ratings.CategoryCurrent},
		{Name: "Michael Jordan", Category: ratings.CategoryClassic},
		{Name: "Larry Bird", Category: ratings.CategoryClassic},
		{Name: "Bill Russell", Category: ratings.CategoryAllTime},
	}}
	incoming := []ratings.Player{
		{Name: "Scottie Pippen", Category: ratings.CategoryClassic},
	}

	merged := MergeByCategory(existing, incoming, ratings.CategoryClassic)

	names := make([]string, 0, len(merged.Players))
	for _, p := range merged.Players {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Luka Doncic", "Scottie Pippen", "Bill Russell"}, names,
		"classic slice replaced in place, other categories untouched")
}

func TestMergeByCategoryAppendsNewCategory(t *testing.T) {
	existing := Document{Players: []ratings.Player{
		{Name: "Luka Doncic", Category: ratings.CategoryCurrent},
	}}
	incoming := []ratings.Player{
		{Name: "Bill Russell", Category: ratings.CategoryAllTime},
	}

	merged := MergeByCategory(existing, incoming, ratings.CategoryAllTime)
	require.Len(t, merged.Players, 2)
	assert.Equal(t, "Bill Russell", merged.Players[1].Name)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(storemem.NewStore(), blobmem.NewBlobStore(), zap.NewNop(), "")
	assert.Error(t, err)
}
