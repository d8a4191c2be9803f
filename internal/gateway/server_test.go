package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/config"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
	"github.com/hoopindex/ratings-pipeline/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	server *Server
	store  *memory.Store
	clock  *fakeClock
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			Enabled: true,
			Keys:    map[string]string{"secret-key": "svc-a"},
		},
		RateLimit: config.RateLimitConfig{Limit: 100, WindowSeconds: 60, Backend: "memory"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	server := NewServer(store, store, memory.NewRateLimitStore(), clock, zap.NewNop(), cfg)
	return &fixture{server: server, store: store, clock: clock}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.ReplaceCategory(ctx, ratings.CategoryCurrent,
		[]ratings.Player{
			{
				Name: "Stephen Curry", NormalizedName: "stephen curry",
				Category: ratings.CategoryCurrent, Team: "Warriors",
				Overall: 95, Position: "PG",
				Attributes: map[string]int{"threepoint_shot": 99},
			},
			{
				Name: "Chris Paul", NormalizedName: "chris paul",
				Category: ratings.CategoryCurrent, Team: "Spurs",
				Overall: 85, Position: "PG",
				Attributes: map[string]int{"threepoint_shot": 87},
			},
		},
		[]ratings.Team{
			{Name: "Warriors", Category: ratings.CategoryCurrent},
			{Name: "Spurs", Category: ratings.CategoryCurrent},
		},
	))
	require.NoError(t, f.store.ReplaceCategory(ctx, ratings.CategoryClassic,
		[]ratings.Player{
			{
				Name: "Michael Jordan", NormalizedName: "michael jordan",
				Category: ratings.CategoryClassic, Team: "'95-'96 Bulls",
				Overall: 99, Position: "SG",
			},
		},
		[]ratings.Team{{Name: "'95-'96 Bulls", Category: ratings.CategoryClassic}},
	))
}

func (f *fixture) do(t *testing.T, method, target, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body map[string]errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "").Code)
}

func TestMissingAPIKeyRejectedAndLogged(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/v1/teams?category=current", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication_failed", decodeError(t, rec).Kind)

	logs, err := f.store.ListRequestLogsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 1, "rejected request is still logged")
	assert.Equal(t, ratings.AnonymousCaller, logs[0].Caller)
	assert.Equal(t, http.StatusUnauthorized, logs[0].Status)
	assert.Equal(t, "/v1/teams", logs[0].Endpoint)
}

func TestInvalidAPIKeyRejected(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/v1/teams?category=current", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitWindowRollover(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.RateLimit.Limit = 5
	})

	for i := 0; i < 5; i++ {
		rec := f.do(t, http.MethodGet, "/v1/teams?category=current", "secret-key")
		require.Equal(t, http.StatusOK, rec.Code, "request %d within limit", i+1)
	}

	rec := f.do(t, http.MethodGet, "/v1/teams?category=current", "secret-key")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Kind)

	f.clock.Advance(time.Minute)
	rec = f.do(t, http.MethodGet, "/v1/teams?category=current", "secret-key")
	assert.Equal(t, http.StatusOK, rec.Code, "fresh window admits again")
}

func TestRateLimitRejectionIsLogged(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.RateLimit.Limit = 1
	})

	f.do(t, http.MethodGet, "/v1/teams?category=current", "secret-key")
	f.do(t, http.MethodGet, "/v1/teams?category=current", "secret-key")

	logs, err := f.store.ListRequestLogsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "svc-a", logs[1].Caller, "rejected caller identity is known")
	assert.Equal(t, http.StatusTooManyRequests, logs[1].Status)
}

func TestGetPlayer(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/players/classic/Michael%20Jordan", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]ratings.Player
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 99, body["player"].Overall)

	rec = f.do(t, http.MethodGet, "/v1/players/current/Michael%20Jordan", "secret-key")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)

	rec = f.do(t, http.MethodGet, "/v1/players/retro/Michael%20Jordan", "secret-key")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Kind)
}

func TestListPlayers(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/players?category=current", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)
	var byCategory struct {
		Players []ratings.Player `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byCategory))
	require.Len(t, byCategory.Players, 2)
	assert.Equal(t, "Stephen Curry", byCategory.Players[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/players?team=warriors", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)
	var byTeam struct {
		Players []ratings.Player `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byTeam))
	require.Len(t, byTeam.Players, 1)
	assert.Equal(t, "Stephen Curry", byTeam.Players[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/players", "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchPlayers(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/players/search?q=jordan", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Players []ratings.Player `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Players, 1)
	assert.Equal(t, "Michael Jordan", body.Players[0].Name)

	rec = f.do(t, http.MethodGet, "/v1/players/search?q=nobody", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"players":[]}`, rec.Body.String(), "no match is an empty list, not an error")

	rec = f.do(t, http.MethodGet, "/v1/players/search", "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTeams(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/teams?category=classic", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"teams":[{"name":"'95-'96 Bulls","category":"classic"}]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/teams", "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPositionAverages(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/positions/pg/averages", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ratings.PositionAverages
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PG", body.Position)
	assert.Equal(t, 2, body.PlayerCount)
	assert.InDelta(t, 90.0, body.MeanOverall, 0.0001)
	assert.InDelta(t, 93.0, body.MeanAttributes["threepoint_shot"], 0.0001)

	// Classic-only positions are outside the default aggregation scope.
	rec = f.do(t, http.MethodGet, "/v1/positions/sg/averages", "secret-key")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositionAveragesAllCategories(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.API.AggregateAllCategories = true
	})
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/positions/sg/averages", "secret-key")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ratings.PositionAverages
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.PlayerCount)
	assert.InDelta(t, 99.0, body.MeanOverall, 0.0001)
}

func TestAuthDisabledAdmitsAnonymous(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = false
	})
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/v1/teams?category=current", "")
	require.Equal(t, http.StatusOK, rec.Code)

	logs, err := f.store.ListRequestLogsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ratings.AnonymousCaller, logs[0].Caller)
}
