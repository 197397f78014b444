// Package extract locates listing blocks in the fetched page and parses
// their fields.
//
// The upstream page has changed its markup several times, so blocks are
// located by an ordered chain of strategies of decreasing specificity.
// The first strategy that finds anything wins.
package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Block is one candidate listing found in a document.
type Block struct {
	Selection *goquery.Selection
	Strategy  string
}

// Chain is an ordered list of strategies.
type Chain []Strategy

// DefaultChain returns the strategies from most to least specific.
func DefaultChain() Chain {
	return Chain{ComponentState{}, KeywordContainer{}, TokenScan{}}
}

// Extract returns the candidates of the first strategy that yields any.
func (c Chain) Extract(doc *goquery.Document) []Block {
	for _, s := range c {
		sels := s.Candidates(doc)
		if len(sels) == 0 {
			continue
		}
		blocks := make([]Block, len(sels))
		for i, sel := range sels {
			blocks[i] = Block{Selection: sel, Strategy: s.Name()}
		}
		return blocks
	}
	return nil
}

// MalformedListingError reports a candidate block that could not be turned
// into an offer.
type MalformedListingError struct {
	Strategy string
	Reason   string
	Snippet  string
}

func (e *MalformedListingError) Error() string {
	return fmt.Sprintf("malformed listing (%s): %s: %s", e.Strategy, e.Reason, e.Snippet)
}
