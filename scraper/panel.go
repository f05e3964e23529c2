package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Section headers, sub-section markers and field labels as the portal
// renders them. Label matching is prefix-based because the portal suffixes
// some labels with a colon or a count.
const (
	sectionDetails    = "Document Details"
	sectionParties    = "Parties"
	sectionAssociated = "Associated Documents"
	sectionLegals     = "Legal Description"

	markerParty1 = "Party 1"
	markerParty2 = "Party 2"

	labelConsideration = "Consideration"
	labelNotes         = "Notes"

	scopeEntireDocument = "Entire document"
)

// Matchers are compiled once; the panel shape is fixed.
var (
	primaryContentM = cascadia.MustCompile(".primary-content")
	sectionM        = cascadia.MustCompile(".detail-section")
	sectionHeaderM  = cascadia.MustCompile(".section-header")
	fieldLabelM     = cascadia.MustCompile(".field-label")
	subContentM     = cascadia.MustCompile(".sub-content")
	subSectionM     = cascadia.MustCompile(".sub-section")
)

// Panel is a parsed snapshot of one row's expanded detail panel.
//
// Field extraction runs against this static snapshot rather than the live
// DOM, so a mid-extract framework re-render cannot tear the values being
// read. The snapshot is taken once, right after the panel becomes visible.
type Panel struct {
	doc *goquery.Document
}

// ParsePanel parses the detail panel's outer HTML.
func ParsePanel(html string) (*Panel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Panel{doc: doc}, nil
}

// PrimaryContent returns the i-th primary-content value, trimmed. Position,
// not label text, determines meaning: index 0 is always the recorded date,
// index 1 the document type.
func (p *Panel) PrimaryContent(i int) string {
	sel := p.doc.FindMatcher(primaryContentM)
	if i < 0 || i >= sel.Length() {
		return ""
	}
	return strings.TrimSpace(sel.Eq(i).Text())
}

// LabelValue locates the named section, finds the first label whose text
// starts with labelPrefix, and returns the trimmed text of the label's next
// sibling element. Empty when the section, the label or the sibling is
// missing.
func (p *Panel) LabelValue(sectionHeader, labelPrefix string) string {
	section := p.sectionByHeader(sectionHeader)
	if section == nil {
		return ""
	}
	value := ""
	section.FindMatcher(fieldLabelM).EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.HasPrefix(strings.TrimSpace(label.Text()), labelPrefix) {
			return true
		}
		value = strings.TrimSpace(label.Next().Text())
		return false
	})
	return value
}

// SectionItems collects every sub-content value in the named section, in
// DOM order. Values that trim to nothing are dropped.
func (p *Panel) SectionItems(sectionHeader string) []string {
	section := p.sectionByHeader(sectionHeader)
	if section == nil {
		return nil
	}
	var items []string
	section.FindMatcher(subContentM).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.Text()); v != "" {
			items = append(items, v)
		}
	})
	return items
}

// SublistItems collects the sub-content values strictly between the named
// sub-section marker and the next marker (or the section end), in DOM
// order. Values that trim to nothing are dropped.
func (p *Panel) SublistItems(sectionHeader, marker string) []string {
	section := p.sectionByHeader(sectionHeader)
	if section == nil {
		return nil
	}
	start := section.FindMatcher(subSectionM).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == marker
	}).First()
	if start.Length() == 0 {
		return nil
	}
	var items []string
	start.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.IsMatcher(subSectionM) {
			return false // next marker: sublist ends here
		}
		if s.IsMatcher(subContentM) {
			if v := strings.TrimSpace(s.Text()); v != "" {
				items = append(items, v)
			}
		}
		return true
	})
	return items
}

// sectionByHeader returns the first section whose header text matches
// header, or nil.
func (p *Panel) sectionByHeader(header string) *goquery.Selection {
	var found *goquery.Selection
	p.doc.FindMatcher(sectionM).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h := strings.TrimSpace(s.FindMatcher(sectionHeaderM).First().Text())
		if h == header {
			found = s
			return false
		}
		return true
	})
	return found
}
