package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlayerDetail is the full attribute breakdown from a player page.
type PlayerDetail struct {
	Position   string
	Height     string
	Attributes map[string]int
}

// PlayerDetailExtractor pulls position, height, and the named attribute
// ratings from an individual player page. Callers turn ErrLayoutMismatch
// into a partial record rather than failing the crawl.
type PlayerDetailExtractor struct {
	// AttributeSelector locates the attribute list items; each item is
	// expected to carry an attribute label and a 0-99 value.
	AttributeSelector string
	PositionSelector  string
	HeightSelector    string
}

// Extract returns the detail breakdown or ErrLayoutMismatch when the
// attribute section cannot be located.
func (e PlayerDetailExtractor) Extract(body []byte) (PlayerDetail, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return PlayerDetail{}, err
	}

	attrSelector := e.AttributeSelector
	if attrSelector == "" {
		attrSelector = ".attributes li, ul.player-attributes li"
	}
	posSelector := e.PositionSelector
	if posSelector == "" {
		posSelector = ".player-position, [data-field=position]"
	}
	heightSelector := e.HeightSelector
	if heightSelector == "" {
		heightSelector = ".player-height, [data-field=height]"
	}

	items := doc.Find(attrSelector)
	if items.Length() == 0 {
		return PlayerDetail{}, ErrLayoutMismatch
	}

	detail := PlayerDetail{
		Position:   strings.TrimSpace(doc.Find(posSelector).First().Text()),
		Height:     strings.TrimSpace(doc.Find(heightSelector).First().Text()),
		Attributes: map[string]int{},
	}
	items.Each(func(_ int, item *goquery.Selection) {
		name, value, ok := splitAttribute(item)
		if !ok {
			return
		}
		detail.Attributes[name] = value
	})
	if len(detail.Attributes) == 0 {
		return PlayerDetail{}, ErrLayoutMismatch
	}
	return detail, nil
}

// splitAttribute reads an attribute item shaped either as
// <li><span class="name">Three-Point Shot</span><span class="value">88</span></li>
// or as a single "Three-Point Shot 88" text node.
func splitAttribute(item *goquery.Selection) (string, int, bool) {
	name := strings.TrimSpace(item.Find(".name").First().Text())
	valueText := item.Find(".value").First().Text()
	if name == "" || strings.TrimSpace(valueText) == "" {
		text := strings.TrimSpace(item.Text())
		match := ratingPattern.FindStringIndex(text)
		if match == nil {
			return "", 0, false
		}
		name = strings.TrimSpace(text[:match[0]])
		valueText = text[match[0]:match[1]]
	}
	value, ok := firstRating(valueText)
	if name == "" || !ok {
		return "", 0, false
	}
	return attributeKey(name), value, true
}

// attributeKey turns a display label into a stable snake_case key.
func attributeKey(label string) string {
	fields := strings.Fields(strings.ToLower(label))
	for i, f := range fields {
		fields[i] = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, f)
	}
	var kept []string
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, "_")
}
