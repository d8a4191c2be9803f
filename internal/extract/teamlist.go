package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TeamRef points at one team page discovered on a category index page.
type TeamRef struct {
	Name string
	Href string
}

// TeamListExtractor pulls team references from a category index page.
// The team reference is the first-column table-cell link. The source is
// known to repeat rows, so identical hrefs are deduped with first-seen
// ordering preserved.
type TeamListExtractor struct {
	// TableSelector narrows the search when the page carries several
	// tables. Empty means any table.
	TableSelector string
}

// Extract returns the ordered, deduped team references on the page.
func (e TeamListExtractor) Extract(body []byte) ([]TeamRef, error) {
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

	seen := map[string]struct{}{}
	var refs []TeamRef
	rows.Each(func(_ int, row *goquery.Selection) {
		link := row.Find("td").First().Find("a").First()
		href, ok := link.Attr("href")
		name := strings.TrimSpace(link.Text())
		if !ok || href == "" || name == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		refs = append(refs, TeamRef{Name: name, Href: href})
	})
	return refs, nil
}
