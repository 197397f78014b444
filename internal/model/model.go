// Package model defines the domain types used across the application.
package model

import (
	"slices"
	"strconv"
	"strings"
)

// UnknownAddress is used when no address could be recovered from a listing.
const UnknownAddress = "Adresse unbekannt"

// IDSource tells which resolution step produced a listing ID.
type IDSource string

// Supported ID sources, from most to least stable.
const (
	IDStructured IDSource = "structured"
	IDElement    IDSource = "element"
	IDHash       IDSource = "hash"
)

// Measure is a decimal value that may be unknown.
type Measure struct {
	Value float64
	Known bool
}

// KnownMeasure returns a Measure holding v.
func KnownMeasure(v float64) Measure {
	return Measure{Value: v, Known: true}
}

// String renders the measure with a decimal comma, or "?" if unknown.
func (m Measure) String() string {
	if !m.Known {
		return "?"
	}
	return strings.Replace(strconv.FormatFloat(m.Value, 'f', -1, 64), ".", ",", 1)
}

// Offer is a single apartment listing that passed extraction.
type Offer struct {
	ListingID    string
	IDSource     IDSource
	Address      string
	Rooms        Measure
	AreaSqm      Measure
	ColdRent     float64
	ColdRentText string
	DetailLink   string
}

// IDSet is a set of listing IDs.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given IDs.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy of the set.
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the IDs in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
