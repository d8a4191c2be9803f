package ratings

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Store persists the canonical player and team sets.
//
// ReplaceCategory swaps the entire slice for one category atomically;
// reconciliation is the only caller.
type Store interface {
	ReplaceCategory(ctx context.Context, category Category, players []Player, teams []Team) error
	GetPlayer(ctx context.Context, normalizedName string, category Category) (Player, error)
	ListPlayersByCategory(ctx context.Context, category Category) ([]Player, error)
	ListPlayersByTeam(ctx context.Context, team string) ([]Player, error)
	ListPlayersByPosition(ctx context.Context, position string, allCategories bool) ([]Player, error)
	SearchPlayers(ctx context.Context, nameSubstring string) ([]Player, error)
	ListTeams(ctx context.Context, category Category) ([]Team, error)
	AllPlayers(ctx context.Context) ([]Player, error)
	PositionAverages(ctx context.Context, position string, allCategories bool) (PositionAverages, error)
}

// RequestLogStore persists append-only API request logs.
type RequestLogStore interface {
	AppendRequestLog(ctx context.Context, entry RequestLog) error
	ListRequestLogsSince(ctx context.Context, since time.Time) ([]RequestLog, error)
	PurgeRequestLogsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// RateLimitStore counts requests per (caller, window bucket).
// Incr must be atomic so concurrent requests cannot both slip under the limit.
type RateLimitStore interface {
	Incr(ctx context.Context, caller string, bucket int64, ttl time.Duration) (int64, error)
}

// BlobStore writes export artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ingest outcome events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
