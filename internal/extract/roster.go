package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RosterEntry is one (player, overall rating) pair from a team page.
type RosterEntry struct {
	Name       string
	Overall    int
	DetailHref string
}

// RosterExtractor pulls (name, rating) pairs from repeated table rows on
// a team page. A row yields an entry only when both a non-empty name and
// a non-empty rating are present; rows missing either are skipped
// silently rather than treated as errors.
type RosterExtractor struct {
	TableSelector string
}

// Extract returns roster entries in source page order.
func (e RosterExtractor) Extract(body []byte) ([]RosterEntry, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	selector := e.TableSelector
	if selector == "" {
		selector = "table"
	}
	rows := tableRows(doc, selector)
	if rows.Length() == 0 {
		return nil, ErrLayoutMismatch
	}

	var entries []RosterEntry
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		nameCell := cells.Eq(0)
		name := strings.TrimSpace(nameCell.Find("a").First().Text())
		href, _ := nameCell.Find("a").First().Attr("href")
		if name == "" {
			name = strings.TrimSpace(nameCell.Text())
		}
		rating, ok := firstRating(cells.Eq(1).Text())
		if name == "" || !ok {
			return
		}
		entries = append(entries, RosterEntry{Name: name, Overall: rating, DetailHref: href})
	})
	return entries, nil
}
