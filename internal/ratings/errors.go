package ratings

import "errors"

// Fetch errors are transient and retried with backoff at the fetch boundary.
var (
	// ErrFetchBlocked means the bot challenge was not passed even after
	// headless rendering.
	ErrFetchBlocked = errors.New("fetch blocked by challenge")
	// ErrFetchTimeout means the page fetch exceeded its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")
	// ErrFetchNetwork covers transport-level failures.
	ErrFetchNetwork = errors.New("fetch network error")
)

// ErrEmptyCrawlAborted is the reconciliation safety trip: a crawl yielded
// zero records for a category whose canonical set is non-empty, so the
// replace was refused and the stored data left untouched.
var ErrEmptyCrawlAborted = errors.New("empty crawl aborted")

// Gateway errors map to structured JSON error responses.
var (
	ErrNotFound             = errors.New("not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
)
