// Package filter implements the listing matching engine.
package filter

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reason tells why a listing was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonNone     Reason = ""
	ReasonRent     Reason = "rent above ceiling"
	ReasonDistrict Reason = "district not wanted"
	ReasonInclude  Reason = "no include keyword"
	ReasonExclude  Reason = "exclude keyword"
)

// Listing is the part of an extracted listing the criteria look at.
type Listing struct {
	ColdRent float64
	Address  string
	// Text is the full text of the listing block.
	Text string
}

// Criteria describes the listings a subscriber wants to hear about.
type Criteria struct {
	RentCeiling float64
	Districts   []string
	Include     []string
	Exclude     []string
}

// Match checks whether a listing passes the criteria.
// The rent ceiling is inclusive. A listing must mention at least one
// district in its address or text; no districts means no restriction.
// Include keywords use OR logic (at least one must match).
// Exclude keywords use AND logic (none must match).
func (c Criteria) Match(l Listing) (bool, Reason) {
	if l.ColdRent > c.RentCeiling {
		return false, ReasonRent
	}

	address := fold(l.Address)
	text := fold(l.Text)
	contains := func(word string) bool {
		w := fold(word)
		if w == "" {
			return false
		}
		return strings.Contains(address, w) || strings.Contains(text, w)
	}

	if len(c.Districts) > 0 && !anyOf(c.Districts, contains) {
		return false, ReasonDistrict
	}
	if anyOf(c.Exclude, contains) {
		return false, ReasonExclude
	}
	if len(c.Include) > 0 && !anyOf(c.Include, contains) {
		return false, ReasonInclude
	}
	return true, ReasonNone
}

func anyOf(words []string, pred func(string) bool) bool {
	for _, w := range words {
		if pred(w) {
			return true
		}
	}
	return false
}

// fold makes "Neukölln" written with a combining diaeresis equal to the
// precomposed form before the case-insensitive comparison.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
