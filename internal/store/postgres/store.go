// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// categoryOrder keeps cross-category listings in the same stable order
// everywhere: current, classic, all-time.
const categoryOrder = "array_position(ARRAY['current','classic','all-time'], category)"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists players, teams, and request logs in Postgres.
type Store struct {
	pool pgxPool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS players (
	normalized_name TEXT NOT NULL,
	category        TEXT NOT NULL,
	name            TEXT NOT NULL,
	team            TEXT NOT NULL,
	overall         INT  NOT NULL,
	position        TEXT NOT NULL DEFAULT '',
	height          TEXT NOT NULL DEFAULT '',
	attributes      JSONB,
	partial         BOOLEAN NOT NULL DEFAULT FALSE,
	scraped_at      TIMESTAMPTZ NOT NULL,
	ord             INT NOT NULL,
	PRIMARY KEY (normalized_name, category)
);
CREATE INDEX IF NOT EXISTS players_team_idx ON players (lower(team));
CREATE INDEX IF NOT EXISTS players_position_idx ON players (upper(position));
CREATE TABLE IF NOT EXISTS teams (
	name     TEXT NOT NULL,
	category TEXT NOT NULL,
	ord      INT NOT NULL,
	PRIMARY KEY (name, category)
);
CREATE TABLE IF NOT EXISTS request_logs (
	id       TEXT PRIMARY KEY,
	ts       TIMESTAMPTZ NOT NULL,
	caller   TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	status   INT NOT NULL
);
CREATE INDEX IF NOT EXISTS request_logs_ts_idx ON request_logs (ts);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ReplaceCategory swaps one category's players and teams in a single
// transaction so readers never observe a half-replaced category.
func (s *Store) ReplaceCategory(ctx context.Context, category ratings.Category, players []ratings.Player, teams []ratings.Team) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM players WHERE category = $1`, string(category)); err != nil {
		return fmt.Errorf("clear players for %s: %w", category, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM teams WHERE category = $1`, string(category)); err != nil {
		return fmt.Errorf("clear teams for %s: %w", category, err)
	}

	for i, p := range players {
		attrs, err := marshalAttributes(p.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes for %s: %w", p.Name, err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO players (
	normalized_name, category, name, team, overall,
	position, height, attributes, partial, scraped_at, ord
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			p.Key().Name, string(category), p.Name, p.Team, p.Overall,
			p.Position, p.Height, attrs, p.Partial, p.ScrapedAt, i,
		)
		if err != nil {
			return fmt.Errorf("insert player %s: %w", p.Name, err)
		}
	}
	for i, t := range teams {
		if _, err := tx.Exec(ctx, `
INSERT INTO teams (name, category, ord) VALUES ($1,$2,$3)`,
			t.Name, string(category), i,
		); err != nil {
			return fmt.Errorf("insert team %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

const playerColumns = `name, normalized_name, category, team, overall, position, height, attributes, partial, scraped_at`

// GetPlayer looks up one player by normalized name and category.
func (s *Store) GetPlayer(ctx context.Context, normalizedName string, category ratings.Category) (ratings.Player, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+playerColumns+`
FROM players
WHERE normalized_name = $1 AND category = $2`,
		normalizedName, string(category),
	)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ratings.Player{}, fmt.Errorf("player %q in category %s: %w", normalizedName, category, ratings.ErrNotFound)
	}
	if err != nil {
		return ratings.Player{}, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

// ListPlayersByCategory returns a category's players in stored order.
func (s *Store) ListPlayersByCategory(ctx context.Context, category ratings.Category) ([]ratings.Player, error) {
	return s.queryPlayers(ctx, `
SELECT `+playerColumns+`
FROM players
WHERE category = $1
ORDER BY ord`,
		string(category),
	)
}

// ListPlayersByTeam matches the team name case-insensitively across all
// categories.
func (s *Store) ListPlayersByTeam(ctx context.Context, team string) ([]ratings.Player, error) {
	return s.queryPlayers(ctx, `
SELECT `+playerColumns+`
FROM players
WHERE lower(team) = lower(btrim($1))
ORDER BY `+categoryOrder+`, ord`,
		team,
	)
}

// ListPlayersByPosition filters by exact position, optionally across all
// categories instead of current only.
func (s *Store) ListPlayersByPosition(ctx context.Context, position string, allCategories bool) ([]ratings.Player, error) {
	return s.queryPlayers(ctx, `
SELECT `+playerColumns+`
FROM players
WHERE upper(position) = upper(btrim($1)) AND ($2 OR category = 'current')
ORDER BY `+categoryOrder+`, ord`,
		position, allCategories,
	)
}

// SearchPlayers matches a case-insensitive substring of the player name.
func (s *Store) SearchPlayers(ctx context.Context, nameSubstring string) ([]ratings.Player, error) {
	needle := ratings.NormalizeName(nameSubstring)
	if needle == "" {
		return nil, nil
	}
	return s.queryPlayers(ctx, `
SELECT `+playerColumns+`
FROM players
WHERE normalized_name LIKE '%' || $1 || '%'
ORDER BY `+categoryOrder+`, ord`,
		needle,
	)
}

// ListTeams returns a category's teams in stored order.
func (s *Store) ListTeams(ctx context.Context, category ratings.Category) ([]ratings.Team, error) {
	rows, err := s.pool.Query(ctx, `
SELECT name, category FROM teams WHERE category = $1 ORDER BY ord`,
		string(category),
	)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []ratings.Team
	for rows.Next() {
		var t ratings.Team
		var cat string
		if err := rows.Scan(&t.Name, &cat); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.Category = ratings.Category(cat)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return out, nil
}

// AllPlayers returns every stored player across all categories.
func (s *Store) AllPlayers(ctx context.Context) ([]ratings.Player, error) {
	return s.queryPlayers(ctx, `
SELECT `+playerColumns+`
FROM players
ORDER BY `+categoryOrder+`, ord`)
}

// PositionAverages aggregates all players at one position. The rows are
// pulled and averaged in Go so the per-attribute denominators match the
// in-memory backend exactly.
func (s *Store) PositionAverages(ctx context.Context, position string, allCategories bool) (ratings.PositionAverages, error) {
	players, err := s.ListPlayersByPosition(ctx, position, allCategories)
	if err != nil {
		return ratings.PositionAverages{}, err
	}
	return ratings.AggregatePosition(normalizePosition(position), players), nil
}

// AppendRequestLog records one API request.
func (s *Store) AppendRequestLog(ctx context.Context, entry ratings.RequestLog) error {
	if _, err := s.pool.Exec(ctx, `
INSERT INTO request_logs (id, ts, caller, endpoint, status) VALUES ($1,$2,$3,$4,$5)`,
		entry.ID, entry.Timestamp, entry.Caller, entry.Endpoint, entry.Status,
	); err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// ListRequestLogsSince returns entries at or after since, oldest first.
func (s *Store) ListRequestLogsSince(ctx context.Context, since time.Time) ([]ratings.RequestLog, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, ts, caller, endpoint, status
FROM request_logs
WHERE ts >= $1
ORDER BY ts`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	var out []ratings.RequestLog
	for rows.Next() {
		var entry ratings.RequestLog
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Caller, &entry.Endpoint, &entry.Status); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	return out, nil
}

// PurgeRequestLogsBefore deletes entries strictly older than cutoff and
// returns how many were removed.
func (s *Store) PurgeRequestLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM request_logs WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge request logs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) queryPlayers(ctx context.Context, query string, args ...any) ([]ratings.Player, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []ratings.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	return out, nil
}

func scanPlayer(row pgx.Row) (ratings.Player, error) {
	var (
		p        ratings.Player
		category string
		attrs    []byte
	)
	err := row.Scan(
		&p.Name, &p.NormalizedName, &category, &p.Team, &p.Overall,
		&p.Position, &p.Height, &attrs, &p.Partial, &p.ScrapedAt,
	)
	if err != nil {
		return ratings.Player{}, err
	}
	p.Category = ratings.Category(category)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return ratings.Player{}, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return p, nil
}

func marshalAttributes(attrs map[string]int) ([]byte, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	return json.Marshal(attrs)
}

func normalizePosition(position string) string {
	return strings.ToUpper(strings.TrimSpace(position))
}
