package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pubmem "github.com/hoopindex/ratings-pipeline/internal/publisher/memory"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
	"github.com/hoopindex/ratings-pipeline/internal/reconcile"
	"github.com/hoopindex/ratings-pipeline/internal/store/memory"
)

type stubCrawler struct {
	results map[ratings.Category]ratings.CategoryResult
	errs    map[ratings.Category]error
	calls   []ratings.Category
}

func (c *stubCrawler) CrawlCategory(_ context.Context, category ratings.Category) (ratings.CategoryResult, error) {
	c.calls = append(c.calls, category)
	if err := c.errs[category]; err != nil {
		return ratings.CategoryResult{}, err
	}
	return c.results[category], nil
}

type stubExporter struct {
	calls int
	err   error
}

func (e *stubExporter) Export(context.Context) (string, error) {
	e.calls++
	return "memory://players.json", e.err
}

type tickClock struct{ now time.Time }

func (c *tickClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func result(category ratings.Category, names ...string) ratings.CategoryResult {
	out := ratings.CategoryResult{Category: category}
	for _, name := range names {
		out.Players = append(out.Players, ratings.Player{Name: name, Team: "Team", Overall: 90})
	}
	if len(names) > 0 {
		out.Teams = []ratings.Team{{Name: "Team", Category: category}}
	}
	return out
}

func newService(crawler *stubCrawler, store *memory.Store, exporter *stubExporter, pub *pubmem.Publisher) *Service {
	return New(
		crawler,
		reconcile.New(store, zap.NewNop()),
		exporter,
		pub,
		&tickClock{now: time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)},
		zap.NewNop(),
		"ingest-events",
	)
}

func TestRunIngestsAllCategories(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	crawler := &stubCrawler{results: map[ratings.Category]ratings.CategoryResult{
		ratings.CategoryCurrent: result(ratings.CategoryCurrent, "Luka Doncic"),
		ratings.CategoryClassic: result(ratings.CategoryClassic, "Michael Jordan"),
	}}
	exporter := &stubExporter{}
	pub := pubmem.New()

	err := newService(crawler, store, exporter, pub).
		Run(ctx, []ratings.Category{ratings.CategoryCurrent, ratings.CategoryClassic})
	require.NoError(t, err)

	assert.Equal(t, []ratings.Category{ratings.CategoryCurrent, ratings.CategoryClassic}, crawler.calls)
	assert.Equal(t, 1, exporter.calls, "export refreshed once per run")

	stored, err := store.ListPlayersByCategory(ctx, ratings.CategoryClassic)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	event, ok := msgs[0].Payload.(Event)
	require.True(t, ok)
	assert.Equal(t, OutcomeSucceeded, event.Outcome)
	assert.Equal(t, 1, event.Players)
	assert.Equal(t, "ingest-events", msgs[0].Topic)
}

func TestRunCategoryFailureDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	crawler := &stubCrawler{
		results: map[ratings.Category]ratings.CategoryResult{
			ratings.CategoryClassic: result(ratings.CategoryClassic, "Michael Jordan"),
		},
		errs: map[ratings.Category]error{
			ratings.CategoryCurrent: ratings.ErrFetchBlocked,
		},
	}
	exporter := &stubExporter{}
	pub := pubmem.New()

	err := newService(crawler, store, exporter, pub).
		Run(ctx, []ratings.Category{ratings.CategoryCurrent, ratings.CategoryClassic})
	require.ErrorIs(t, err, ratings.ErrFetchBlocked)

	stored, listErr := store.ListPlayersByCategory(ctx, ratings.CategoryClassic)
	require.NoError(t, listErr)
	assert.Len(t, stored, 1, "healthy category still ingested")
	assert.Equal(t, 1, exporter.calls, "export still refreshed for the healthy category")

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	failed, ok := msgs[0].Payload.(Event)
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, failed.Outcome)
	assert.NotEmpty(t, failed.Error)
}

func TestRunEmptyCrawlAborts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	crawler := &stubCrawler{results: map[ratings.Category]ratings.CategoryResult{
		ratings.CategoryCurrent: result(ratings.CategoryCurrent, "Luka Doncic"),
	}}
	pub := pubmem.New()
	svc := newService(crawler, store, &stubExporter{}, pub)

	require.NoError(t, svc.Run(ctx, []ratings.Category{ratings.CategoryCurrent}))

	// Second run: the source suddenly yields nothing for a populated category.
	crawler.results[ratings.CategoryCurrent] = ratings.CategoryResult{Category: ratings.CategoryCurrent}
	err := svc.Run(ctx, []ratings.Category{ratings.CategoryCurrent})
	require.ErrorIs(t, err, ratings.ErrEmptyCrawlAborted)

	stored, listErr := store.ListPlayersByCategory(ctx, ratings.CategoryCurrent)
	require.NoError(t, listErr)
	assert.Len(t, stored, 1, "stored data untouched")

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	aborted, ok := msgs[1].Payload.(Event)
	require.True(t, ok)
	assert.Equal(t, OutcomeEmptyCrawlAborted, aborted.Outcome)
}

func TestRunNoSuccessSkipsExport(t *testing.T) {
	crawler := &stubCrawler{errs: map[ratings.Category]error{
		ratings.CategoryCurrent: errors.New("boom"),
	}}
	exporter := &stubExporter{}
	svc := newService(crawler, memory.NewStore(), exporter, pubmem.New())

	err := svc.Run(context.Background(), []ratings.Category{ratings.CategoryCurrent})
	require.Error(t, err)
	assert.Zero(t, exporter.calls)
}

func TestRunCancelledContextStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	crawler := &stubCrawler{}
	err := newService(crawler, memory.NewStore(), &stubExporter{}, pubmem.New()).
		Run(ctx, []ratings.Category{ratings.CategoryCurrent, ratings.CategoryClassic})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, crawler.calls)
}
