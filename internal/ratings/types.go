// Package ratings defines core types shared across subsystems.
package ratings

import (
	"fmt"
	"net/http"
	"time"
)

// Category partitions teams and players by roster era.
type Category string

// Category values persisted with every Player and Team record.
const (
	CategoryCurrent Category = "current"
	CategoryClassic Category = "classic"
	CategoryAllTime Category = "all-time"
)

// Categories returns all valid categories in a stable order.
func Categories() []Category {
	return []Category{CategoryCurrent, CategoryClassic, CategoryAllTime}
}

// ParseCategory validates a raw category string.
func ParseCategory(raw string) (Category, error) {
	switch Category(raw) {
	case CategoryCurrent, CategoryClassic, CategoryAllTime:
		return Category(raw), nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// PlayerKey is the canonical identity of a player record.
type PlayerKey struct {
	Name     string
	Category Category
}

// Player is the canonical record produced by reconciliation.
// A Partial player is missing detail-page attributes but is still valid.
type Player struct {
	Name           string         `json:"name"`
	NormalizedName string         `json:"normalized_name"`
	Category       Category       `json:"category"`
	Team           string         `json:"team"`
	Overall        int            `json:"overall"`
	Position       string         `json:"position,omitempty"`
	Height         string         `json:"height,omitempty"`
	Attributes     map[string]int `json:"attributes,omitempty"`
	Partial        bool           `json:"partial,omitempty"`
	ScrapedAt      time.Time      `json:"scraped_at"`
}

// Key returns the canonical (normalized name, category) identity.
func (p Player) Key() PlayerKey {
	name := p.NormalizedName
	if name == "" {
		name = NormalizeName(p.Name)
	}
	return PlayerKey{Name: name, Category: p.Category}
}

// Team belongs to exactly one category.
type Team struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// CategoryResult is the complete output of one category crawl.
type CategoryResult struct {
	Category Category
	Teams    []Team
	Players  []Player
}

// RequestLog records one API request, successful or not.
type RequestLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Caller    string    `json:"caller"`
	Endpoint  string    `json:"endpoint"`
	Status    int       `json:"status"`
}

// AnonymousCaller marks request log entries with no valid API key.
const AnonymousCaller = "anonymous"

// PositionAverages aggregates players at one position.
type PositionAverages struct {
	Position       string             `json:"position"`
	PlayerCount    int                `json:"player_count"`
	MeanOverall    float64            `json:"mean_overall"`
	MeanAttributes map[string]float64 `json:"mean_attributes"`
}

// FetchRequest captures everything needed to fetch a page.
type FetchRequest struct {
	URL         string
	Headers     http.Header
	UseHeadless bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
