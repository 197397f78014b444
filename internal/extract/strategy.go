package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StateAttrs are the attributes a client-side component framework uses to
// ship a component's serialized state with the markup.
var StateAttrs = []string{"wire:snapshot", "wire:initial-data", "x-data", "data-state"}

var (
	apartmentIDRe   = regexp.MustCompile(`^apartment-\d+$`)
	listingClassRe  = regexp.MustCompile(`(?i)listing|offer|apartment|wohnung|flat`)
	roomTokenRe     = regexp.MustCompile(`(?i)\d\s*-?\s*(?:zimmer|zi\.|rooms?\b)`)
	areaTokenRe     = regexp.MustCompile(`(?i)\d\s*(?:m²|m2\b|qm\b)`)
	currencyTokenRe = regexp.MustCompile(`\d\s*(?:€|(?i:eur)\b)`)
)

// Strategy locates candidate listing blocks in a document.
// An empty result means the strategy does not recognise the page.
type Strategy interface {
	Name() string
	Candidates(doc *goquery.Document) []*goquery.Selection
}

// StateAttr returns the first component-state attribute on sel.
func StateAttr(sel *goquery.Selection) (string, bool) {
	for _, name := range StateAttrs {
		if v, ok := sel.Attr(name); ok {
			return v, true
		}
	}
	return "", false
}

// ComponentState matches reactive components rendered per listing,
// e.g. <div id="apartment-1234" wire:snapshot="{...}">.
type ComponentState struct{}

// Name implements Strategy.
func (ComponentState) Name() string { return "component-state" }

// Candidates implements Strategy.
func (ComponentState) Candidates(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find(`[id^="apartment-"]`).Each(func(_ int, s *goquery.Selection) {
		if !apartmentIDRe.MatchString(s.AttrOr("id", "")) {
			return
		}
		if _, ok := StateAttr(s); ok {
			out = append(out, s)
		}
	})
	return out
}

// KeywordContainer matches <article> elements and elements whose class
// names a listing, offer, apartment or flat.
type KeywordContainer struct{}

// Name implements Strategy.
func (KeywordContainer) Name() string { return "keyword-container" }

// Candidates implements Strategy.
func (KeywordContainer) Candidates(doc *goquery.Document) []*goquery.Selection {
	matched := doc.Find("article, [class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "article" {
			return true
		}
		return listingClassRe.MatchString(s.AttrOr("class", ""))
	})
	return selectListings(matched, func(text string) bool {
		return currencyTokenRe.MatchString(text) &&
			(roomTokenRe.MatchString(text) || areaTokenRe.MatchString(text))
	}, true)
}

// TokenScan matches any block-level element whose text mentions both a
// room count and a price.
type TokenScan struct{}

// Name implements Strategy.
func (TokenScan) Name() string { return "token-scan" }

// Candidates implements Strategy.
func (TokenScan) Candidates(doc *goquery.Document) []*goquery.Selection {
	matched := doc.Find("div, section, article, li, tr, td, dd, p")
	return selectListings(matched, func(text string) bool {
		return roomTokenRe.MatchString(text) && currencyTokenRe.MatchString(text)
	}, false)
}

// selectListings keeps the elements of matched whose text is plausible and
// resolves nesting between them. Elements that contain several plausible
// elements are page containers and are dropped. With keepOuter, an element
// that wraps exactly one plausible element is kept in place of that
// element; otherwise only the innermost elements survive.
func selectListings(matched *goquery.Selection, plausible func(string) bool, keepOuter bool) []*goquery.Selection {
	var nodes []*html.Node
	sels := make(map[*html.Node]*goquery.Selection)
	matched.Each(func(_ int, s *goquery.Selection) {
		if plausible(Text(s)) {
			n := s.Get(0)
			nodes = append(nodes, n)
			sels[n] = s
		}
	})

	inner := make(map[*html.Node]int, len(nodes))
	for _, n := range nodes {
		for p := n.Parent; p != nil; p = p.Parent {
			if _, ok := sels[p]; ok {
				inner[p]++
			}
		}
	}

	var out []*goquery.Selection
	for _, n := range nodes {
		if !keepOuter {
			if inner[n] == 0 {
				out = append(out, sels[n])
			}
			continue
		}
		if inner[n] > 1 || wrappedBySingle(n, sels, inner) {
			continue
		}
		out = append(out, sels[n])
	}
	return out
}

func wrappedBySingle(n *html.Node, sels map[*html.Node]*goquery.Selection, inner map[*html.Node]int) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if _, ok := sels[p]; ok && inner[p] == 1 {
			return true
		}
	}
	return false
}
