// Package extract pulls the sender, subject and body of the open message out
// of a captured webmail page.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// Selectors lists, per field, the CSS selectors tried in order. The first
// selector that matches an element wins.
type Selectors struct {
	Subject        []string
	Sender         []string
	SenderFallback []string
	Body           []string
}

// senderAttrs are read in order from a sender element before its text
var senderAttrs = []string{"email", "data-hovercard-id"}

// GmailSelectors match the Gmail conversation view
func GmailSelectors() Selectors {
	return Selectors{
		Subject: []string{
			"h2.hP",
			"[data-legacy-thread-id] h2",
			".ha h2",
			"h2[data-thread-perm-id]",
		},
		Sender: []string{
			"span.gD[email]",
			".gD[email]",
			"[data-hovercard-id]",
			".go[email]",
		},
		SenderFallback: []string{
			".gD",
			".go",
			"[data-hovercard-id]",
		},
		Body: []string{
			"div.a3s.aiL",
			".a3s",
			"[data-message-id] .a3s",
			".ii.gt",
		},
	}
}

// Extractor implements core.ContentExtractor with goquery
type Extractor struct {
	selectors Selectors
	logger    *zap.Logger
}

// NewExtractor creates a new extractor using selectors
func NewExtractor(selectors Selectors, logger *zap.Logger) *Extractor {
	return &Extractor{
		selectors: selectors,
		logger:    logger,
	}
}

// Extract returns whatever fields resolved. Missing fields are left empty;
// the error is reserved for documents that cannot be parsed.
func (e *Extractor) Extract(html string) (*core.EmailCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	candidate := &core.EmailCandidate{
		Subject: text(first(doc, e.selectors.Subject)),
		Sender:  e.sender(doc),
		Body:    text(first(doc, e.selectors.Body)),
	}

	if candidate.Subject == "" || candidate.Sender == "" || candidate.Body == "" {
		e.logger.Debug("Missing page elements",
			zap.Bool("subject", candidate.Subject != ""),
			zap.Bool("sender", candidate.Sender != ""),
			zap.Bool("body", candidate.Body != ""))
	}

	return candidate, nil
}

func (e *Extractor) sender(doc *goquery.Document) string {
	if s := senderValue(first(doc, e.selectors.Sender)); s != "" {
		return s
	}
	return senderValue(first(doc, e.selectors.SenderFallback))
}

// first returns the first element matched by the first matching selector
func first(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func senderValue(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	for _, attr := range senderAttrs {
		if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return text(sel)
}

func text(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}
