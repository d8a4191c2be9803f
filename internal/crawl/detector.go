package crawl

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ChallengeDetector decides whether a response body is a bot-challenge
// interstitial rather than real content, using simple HTML signals:
// suspiciously small bodies, known challenge phrases, or the absence of
// markup every real source page carries.
type ChallengeDetector struct {
	minHTMLBytes      int
	keywords          [][]byte
	requiredSelectors []string
}

// NewChallengeDetector constructs a detector with the configured thresholds.
func NewChallengeDetector(minBytes int, keywords, requiredSelectors []string) *ChallengeDetector {
	lowerKeywords := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	return &ChallengeDetector{
		minHTMLBytes:      minBytes,
		keywords:          lowerKeywords,
		requiredSelectors: requiredSelectors,
	}
}

// Challenged reports whether the body looks like a challenge page.
func (d *ChallengeDetector) Challenged(body []byte) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(body):
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *ChallengeDetector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *ChallengeDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *ChallengeDetector) missingSelectors(body []byte) bool {
	if len(d.requiredSelectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.requiredSelectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
