// Package extract implements page extractors for the rating source's
// three page types: team list, team roster, and player detail. Each
// extractor returns a validated structured result or ErrLayoutMismatch,
// keeping parsing swappable if the source's markup changes.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrLayoutMismatch means the page did not contain the expected markup.
var ErrLayoutMismatch = errors.New("page layout mismatch")

var ratingPattern = regexp.MustCompile(`\b(\d{1,2})\b`)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// firstRating pulls the first 0-99 integer out of a cell's text.
func firstRating(text string) (int, bool) {
	match := ratingPattern.FindString(strings.TrimSpace(text))
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil || n < 0 || n > 99 {
		return 0, false
	}
	return n, true
}

func tableRows(doc *goquery.Document, selector string) *goquery.Selection {
	rows := doc.Find(selector + " tbody tr")
	if rows.Length() == 0 {
		rows = doc.Find(selector + " tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
			return row.Find("td").Length() > 0
		})
	}
	return rows
}
