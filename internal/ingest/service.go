// Package ingest orchestrates one end-to-end ingestion run: crawl the
// source, reconcile into the store, export the artifact, and publish
// outcome events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/metrics"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
	"github.com/hoopindex/ratings-pipeline/internal/reconcile"
)

// Outcome values attached to ingest events and metrics.
const (
	OutcomeSucceeded         = "succeeded"
	OutcomeEmptyCrawlAborted = "empty_crawl_aborted"
	OutcomeFailed            = "failed"
)

// CategoryCrawler produces the full crawl result for one category.
type CategoryCrawler interface {
	CrawlCategory(ctx context.Context, category ratings.Category) (ratings.CategoryResult, error)
}

// Reconciler merges a crawl result into the canonical store.
type Reconciler interface {
	Reconcile(ctx context.Context, result ratings.CategoryResult) (reconcile.Summary, error)
}

// ArtifactExporter snapshots the store into a blob artifact.
type ArtifactExporter interface {
	Export(ctx context.Context) (string, error)
}

// Event is the payload published after each category run.
type Event struct {
	Category  ratings.Category `json:"category"`
	Outcome   string           `json:"outcome"`
	Players   int              `json:"players"`
	Teams     int              `json:"teams"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Service runs ingestion for one or more categories.
type Service struct {
	crawler    CategoryCrawler
	reconciler Reconciler
	exporter   ArtifactExporter
	publisher  ratings.Publisher
	clock      ratings.Clock
	logger     *zap.Logger
	topic      string
}

// New constructs a Service. The publisher and exporter may be nil when
// those stages are not configured.
func New(
	crawler CategoryCrawler,
	reconciler Reconciler,
	exporter ArtifactExporter,
	publisher ratings.Publisher,
	clock ratings.Clock,
	logger *zap.Logger,
	topic string,
) *Service {
	return &Service{
		crawler:    crawler,
		reconciler: reconciler,
		exporter:   exporter,
		publisher:  publisher,
		clock:      clock,
		logger:     logger,
		topic:      topic,
	}
}

// Run ingests each category in turn. Categories are independent: a
// failure in one does not stop the others, and every failure is joined
// into the returned error. The export artifact is refreshed once at the
// end if at least one category replaced its data.
func (s *Service) Run(ctx context.Context, categories []ratings.Category) error {
	var (
		errs      []error
		succeeded int
	)
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("ingest canceled: %w", err))
			break
		}
		if err := s.runCategory(ctx, category); err != nil {
			errs = append(errs, err)
			continue
		}
		succeeded++
	}

	if succeeded > 0 && s.exporter != nil {
		if _, err := s.exporter.Export(ctx); err != nil {
			errs = append(errs, fmt.Errorf("export after ingest: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) runCategory(ctx context.Context, category ratings.Category) error {
	start := s.clock.Now()
	result, err := s.crawler.CrawlCategory(ctx, category)
	if err != nil {
		s.finish(ctx, Event{Category: category, Outcome: OutcomeFailed, Error: err.Error()})
		return fmt.Errorf("crawl %s: %w", category, err)
	}

	summary, err := s.reconciler.Reconcile(ctx, result)
	if errors.Is(err, ratings.ErrEmptyCrawlAborted) {
		s.finish(ctx, Event{Category: category, Outcome: OutcomeEmptyCrawlAborted, Error: err.Error()})
		return fmt.Errorf("reconcile %s: %w", category, err)
	}
	if err != nil {
		s.finish(ctx, Event{Category: category, Outcome: OutcomeFailed, Error: err.Error()})
		return fmt.Errorf("reconcile %s: %w", category, err)
	}

	s.logger.Info("category ingested",
		zap.String("category", string(category)),
		zap.Int("players", summary.Players),
		zap.Int("teams", summary.Teams),
		zap.Duration("took", s.clock.Now().Sub(start)),
	)
	s.finish(ctx, Event{
		Category: category,
		Outcome:  OutcomeSucceeded,
		Players:  summary.Players,
		Teams:    summary.Teams,
	})
	return nil
}

// finish records the run outcome in metrics and publishes the event.
func (s *Service) finish(ctx context.Context, event Event) {
	event.Timestamp = s.clock.Now()
	metrics.ObserveIngestRun(string(event.Category), event.Outcome)
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Error("publish ingest event failed",
			zap.String("category", string(event.Category)),
			zap.String("outcome", event.Outcome),
			zap.Error(err),
		)
	}
}
