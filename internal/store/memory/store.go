// Package memory provides in-process store implementations backed by
// maps under an RWMutex. It is the default backend when no database DSN
// is configured and the fixture store for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

// Store keeps the canonical player and team sets in memory.
type Store struct {
	mu sync.RWMutex

	players map[ratings.PlayerKey]ratings.Player
	// byCategory preserves reconciliation emission order per category.
	byCategory map[ratings.Category][]ratings.PlayerKey
	teams      map[ratings.Category][]ratings.Team

	logs []ratings.RequestLog
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		players:    make(map[ratings.PlayerKey]ratings.Player),
		byCategory: make(map[ratings.Category][]ratings.PlayerKey),
		teams:      make(map[ratings.Category][]ratings.Team),
	}
}

// ReplaceCategory swaps the entire player and team set for one category.
func (s *Store) ReplaceCategory(ctx context.Context, category ratings.Category, players []ratings.Player, teams []ratings.Team) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Validate before touching any state so a bad replace set cannot
	// leave the category half-replaced.
	keys := make([]ratings.PlayerKey, 0, len(players))
	seen := make(map[ratings.PlayerKey]struct{}, len(players))
	for _, p := range players {
		key := p.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate player key %s/%s in replace set", key.Name, key.Category)
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.byCategory[category] {
		delete(s.players, key)
	}
	for i, p := range players {
		s.players[keys[i]] = p
	}
	s.byCategory[category] = keys

	s.teams[category] = make([]ratings.Team, len(teams))
	copy(s.teams[category], teams)
	return nil
}

// GetPlayer looks up one player by normalized name and category.
func (s *Store) GetPlayer(ctx context.Context, normalizedName string, category ratings.Category) (ratings.Player, error) {
	if err := ctx.Err(); err != nil {
		return ratings.Player{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[ratings.PlayerKey{Name: normalizedName, Category: category}]
	if !ok {
		return ratings.Player{}, fmt.Errorf("player %q in category %s: %w", normalizedName, category, ratings.ErrNotFound)
	}
	return p, nil
}

// ListPlayersByCategory returns a category's players in stored order.
func (s *Store) ListPlayersByCategory(ctx context.Context, category ratings.Category) ([]ratings.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ratings.Player, 0, len(s.byCategory[category]))
	for _, key := range s.byCategory[category] {
		out = append(out, s.players[key])
	}
	return out, nil
}

// ListPlayersByTeam matches the team name case-insensitively across all
// categories.
func (s *Store) ListPlayersByTeam(ctx context.Context, team string) ([]ratings.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := ratings.NormalizeName(team)
	return s.scan(func(p ratings.Player) bool {
		return ratings.NormalizeName(p.Team) == want
	}), nil
}

// ListPlayersByPosition filters by exact position, optionally across all
// categories instead of current only.
func (s *Store) ListPlayersByPosition(ctx context.Context, position string, allCategories bool) ([]ratings.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := strings.ToUpper(strings.TrimSpace(position))
	return s.scan(func(p ratings.Player) bool {
		if !allCategories && p.Category != ratings.CategoryCurrent {
			return false
		}
		return strings.ToUpper(p.Position) == want
	}), nil
}

// SearchPlayers matches a case-insensitive substring of the player name.
func (s *Store) SearchPlayers(ctx context.Context, nameSubstring string) ([]ratings.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := ratings.NormalizeName(nameSubstring)
	if want == "" {
		return nil, nil
	}
	return s.scan(func(p ratings.Player) bool {
		return strings.Contains(p.NormalizedName, want)
	}), nil
}

// ListTeams returns a category's teams in stored order.
func (s *Store) ListTeams(ctx context.Context, category ratings.Category) ([]ratings.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ratings.Team, len(s.teams[category]))
	copy(out, s.teams[category])
	return out, nil
}

// AllPlayers returns every stored player across all categories.
func (s *Store) AllPlayers(ctx context.Context) ([]ratings.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.scan(func(ratings.Player) bool { return true }), nil
}

// PositionAverages aggregates all players at one position.
func (s *Store) PositionAverages(ctx context.Context, position string, allCategories bool) (ratings.PositionAverages, error) {
	players, err := s.ListPlayersByPosition(ctx, position, allCategories)
	if err != nil {
		return ratings.PositionAverages{}, err
	}
	return ratings.AggregatePosition(strings.ToUpper(strings.TrimSpace(position)), players), nil
}

// scan walks categories in stable order so results are deterministic.
func (s *Store) scan(match func(ratings.Player) bool) []ratings.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ratings.Player
	for _, category := range ratings.Categories() {
		for _, key := range s.byCategory[category] {
			if p := s.players[key]; match(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// AppendRequestLog records one API request.
func (s *Store) AppendRequestLog(ctx context.Context, entry ratings.RequestLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// ListRequestLogsSince returns entries at or after since, oldest first.
func (s *Store) ListRequestLogsSince(ctx context.Context, since time.Time) ([]ratings.RequestLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ratings.RequestLog
	for _, entry := range s.logs {
		if !entry.Timestamp.Before(since) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// PurgeRequestLogsBefore deletes entries strictly older than cutoff and
// returns how many were removed.
func (s *Store) PurgeRequestLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	purged := 0
	for _, entry := range s.logs {
		if entry.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, entry)
	}
	s.logs = kept
	return purged, nil
}
