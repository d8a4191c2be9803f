// Package crawl orchestrates the multi-stage category crawl: team list,
// per-team rosters, and per-player detail pages, under bounded
// concurrency and politeness pacing.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/extract"
	"github.com/hoopindex/ratings-pipeline/internal/metrics"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// Config controls crawl behavior for one source site.
type Config struct {
	BaseURL        string
	CategoryPaths  map[ratings.Category]string
	Workers        int
	DetailPagesOff bool
	// MaxTeamsPerRun trims the team list, mostly for smoke runs.
	MaxTeamsPerRun int
}

// Crawler walks one category of the source site and returns its full
// result set. Results are assembled in source order (teams in list
// order, players in roster order) so downstream last-seen-wins merging
// is deterministic regardless of fetch completion order.
type Crawler struct {
	probe    ratings.Fetcher
	headless ratings.Fetcher
	detector *ChallengeDetector
	retry    *RetryPolicy
	pacer    *Pacer
	clock    ratings.Clock
	logger   *zap.Logger
	cfg      Config

	teamList extract.TeamListExtractor
	roster   extract.RosterExtractor
	detail   extract.PlayerDetailExtractor

	base *url.URL
}

// New constructs a Crawler. The probe fetcher may be nil, in which case
// every page goes straight to the headless fetcher.
func New(
	probe ratings.Fetcher,
	headless ratings.Fetcher,
	detector *ChallengeDetector,
	retry *RetryPolicy,
	pacer *Pacer,
	clock ratings.Clock,
	logger *zap.Logger,
	cfg Config,
) (*Crawler, error) {
	if headless == nil && probe == nil {
		return nil, fmt.Errorf("at least one fetcher is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Crawler{
		probe:    probe,
		headless: headless,
		detector: detector,
		retry:    retry,
		pacer:    pacer,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		base:     base,
	}, nil
}

// CrawlCategory runs the full three-stage crawl for one category.
// Cancellation aborts the run; no partial result is ever returned.
func (c *Crawler) CrawlCategory(ctx context.Context, category ratings.Category) (ratings.CategoryResult, error) {
	path, ok := c.cfg.CategoryPaths[category]
	if !ok {
		return ratings.CategoryResult{}, fmt.Errorf("no source path configured for category %q", category)
	}

	indexBody, err := c.fetchPage(ctx, c.resolve(path), category)
	if err != nil {
		return ratings.CategoryResult{}, fmt.Errorf("fetch team list: %w", err)
	}
	refs, err := c.teamList.Extract(indexBody)
	if err != nil {
		return ratings.CategoryResult{}, fmt.Errorf("extract team list: %w", err)
	}
	if c.cfg.MaxTeamsPerRun > 0 && len(refs) > c.cfg.MaxTeamsPerRun {
		refs = refs[:c.cfg.MaxTeamsPerRun]
	}
	c.logger.Info("team list crawled",
		zap.String("category", string(category)),
		zap.Int("teams", len(refs)),
	)

	rosters, err := c.crawlRosters(ctx, category, refs)
	if err != nil {
		return ratings.CategoryResult{}, err
	}
	details := c.crawlDetails(ctx, category, rosters)
	if err := ctx.Err(); err != nil {
		return ratings.CategoryResult{}, fmt.Errorf("crawl canceled: %w", err)
	}

	return c.assemble(category, refs, rosters, details), nil
}

// crawlRosters fetches every team page in parallel, keeping results
// slotted by team index so ordering stays deterministic.
func (c *Crawler) crawlRosters(
	ctx context.Context,
	category ratings.Category,
	refs []extract.TeamRef,
) ([][]extract.RosterEntry, error) {
	rosters := make([][]extract.RosterEntry, len(refs))
	err := c.runPool(ctx, len(refs), func(poolCtx context.Context, i int) error {
		body, err := c.fetchPage(poolCtx, c.resolve(refs[i].Href), category)
		if err != nil {
			return fmt.Errorf("fetch roster %s: %w", refs[i].Name, err)
		}
		entries, err := c.roster.Extract(body)
		if err != nil {
			return fmt.Errorf("extract roster %s: %w", refs[i].Name, err)
		}
		rosters[i] = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rosters, nil
}

type detailKey struct {
	team  int
	entry int
}

// crawlDetails fetches player pages in parallel. Detail failures degrade
// to partial records instead of failing the run, so this stage never
// returns an error; cancellation is observed by the caller.
func (c *Crawler) crawlDetails(
	ctx context.Context,
	category ratings.Category,
	rosters [][]extract.RosterEntry,
) map[detailKey]extract.PlayerDetail {
	details := make(map[detailKey]extract.PlayerDetail)
	if c.cfg.DetailPagesOff {
		return details
	}

	var keys []detailKey
	for ti, entries := range rosters {
		for ei, entry := range entries {
			if entry.DetailHref != "" {
				keys = append(keys, detailKey{team: ti, entry: ei})
			}
		}
	}

	var mu sync.Mutex
	_ = c.runPool(ctx, len(keys), func(poolCtx context.Context, i int) error {
		key := keys[i]
		entry := rosters[key.team][key.entry]
		body, err := c.fetchPage(poolCtx, c.resolve(entry.DetailHref), category)
		if err != nil {
			c.logger.Warn("detail fetch failed, keeping partial record",
				zap.String("player", entry.Name),
				zap.Error(err),
			)
			return nil
		}
		detail, err := c.detail.Extract(body)
		if err != nil {
			c.logger.Warn("detail layout mismatch, keeping partial record",
				zap.String("player", entry.Name),
				zap.Error(err),
			)
			return nil
		}
		mu.Lock()
		details[key] = detail
		mu.Unlock()
		return nil
	})
	return details
}

func (c *Crawler) assemble(
	category ratings.Category,
	refs []extract.TeamRef,
	rosters [][]extract.RosterEntry,
	details map[detailKey]extract.PlayerDetail,
) ratings.CategoryResult {
	now := c.clock.Now()
	result := ratings.CategoryResult{Category: category}
	for ti, ref := range refs {
		result.Teams = append(result.Teams, ratings.Team{Name: ref.Name, Category: category})
		for ei, entry := range rosters[ti] {
			player := ratings.Player{
				Name:           entry.Name,
				NormalizedName: ratings.NormalizeName(entry.Name),
				Category:       category,
				Team:           ref.Name,
				Overall:        entry.Overall,
				ScrapedAt:      now,
			}
			if detail, ok := details[detailKey{team: ti, entry: ei}]; ok {
				player.Position = detail.Position
				player.Height = detail.Height
				player.Attributes = detail.Attributes
			} else {
				player.Partial = true
			}
			result.Players = append(result.Players, player)
		}
	}
	return result
}

// fetchPage runs the probe/promote/retry pipeline for one URL.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string, category ratings.Category) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := c.fetchOnce(ctx, pageURL)
		if err == nil {
			metrics.ObservePageFetch(string(category), "ok")
			return body, nil
		}
		metrics.ObservePageFetch(string(category), "error")
		if !c.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		delay := c.retry.Backoff(attempt)
		c.logger.Warn("page fetch failed, backing off",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := pause(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Crawler) fetchOnce(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	request := ratings.FetchRequest{URL: pageURL}
	var (
		resp ratings.FetchResponse
		err  error
	)
	promote := c.probe == nil
	if c.probe != nil {
		resp, err = c.probe.Fetch(ctx, request)
		promote = err != nil || c.detector.Challenged(resp.Body)
	}

	if promote && c.headless != nil {
		metrics.IncHeadlessPromotion()
		request.UseHeadless = true
		resp, err = c.headless.Fetch(ctx, request)
		if err != nil {
			return nil, err
		}
		if c.detector.Challenged(resp.Body) {
			return nil, fmt.Errorf("%w: %s", ratings.ErrFetchBlocked, pageURL)
		}
		return resp.Body, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ratings.ErrFetchNetwork, err)
	}
	if c.detector.Challenged(resp.Body) {
		return nil, fmt.Errorf("%w: %s", ratings.ErrFetchBlocked, pageURL)
	}
	return resp.Body, nil
}

// runPool fans jobs out to a bounded worker pool. The first error
// cancels the remaining jobs and is returned.
func (c *Crawler) runPool(ctx context.Context, jobs int, fn func(ctx context.Context, i int) error) error {
	if jobs == 0 {
		return ctx.Err()
	}
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := c.cfg.Workers
	if workers > jobs {
		workers = jobs
	}
	jobCh := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				if poolCtx.Err() != nil {
					return
				}
				if err := fn(poolCtx, i); err != nil {
					fail(err)
					return
				}
			}
		}()
	}

feed:
	for i := 0; i < jobs; i++ {
		select {
		case jobCh <- i:
		case <-poolCtx.Done():
			break feed
		}
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl canceled: %w", err)
	}
	return nil
}

func (c *Crawler) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
