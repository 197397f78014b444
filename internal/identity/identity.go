// Package identity assigns a stable ID to every extracted listing.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"html"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"flat_bot/internal/extract"
	"flat_bot/internal/model"
)

const hashLen = 12

// IDKeys are the record fields that carry an upstream listing ID, in order
// of preference.
var IDKeys = []string{"objectID", "objektID", "object_id", "id"}

var elementIDRe = regexp.MustCompile(`^(?:flat_|apartment-)(\d+)$`)

// Resolver resolves listing IDs. The zero value is ready to use.
type Resolver struct{}

// Resolve returns the ID for block and the step that produced it:
// an ID from the component state payload, then the numeric part of the
// element id, then a hash of the listing's content.
func (Resolver) Resolve(block *goquery.Selection, f extract.Fields) (string, model.IDSource) {
	if raw, ok := extract.StateAttr(block); ok {
		if id, ok := StateID(raw); ok {
			return id, model.IDStructured
		}
	}
	if m := elementIDRe.FindStringSubmatch(block.AttrOr("id", "")); m != nil {
		return m[1], model.IDElement
	}
	return ContentHash(f.Address, f.AreaRaw, f.RentRaw), model.IDHash
}

// StateID extracts the ID of the item record from a serialized component
// state. The attribute value may still be HTML-escaped once more than the
// parser undoes.
func StateID(raw string) (string, bool) {
	v, ok := decodeState(raw)
	if !ok {
		v, ok = decodeState(html.UnescapeString(raw))
	}
	if !ok {
		return "", false
	}
	return findItemID(v)
}

func decodeState(raw string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// findItemID walks the payload depth-first looking for an "item" entry.
// Livewire dehydrates arrays as [value, meta] tuples, so an item may be
// the record itself or the first element of such a tuple.
func findItemID(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		if item, ok := t["item"]; ok {
			if id, ok := recordID(item); ok {
				return id, true
			}
		}
		for _, k := range sortedKeys(t) {
			if id, ok := findItemID(t[k]); ok {
				return id, true
			}
		}
	case []any:
		for _, e := range t {
			if id, ok := findItemID(e); ok {
				return id, true
			}
		}
	}
	return "", false
}

func recordID(item any) (string, bool) {
	if tuple, ok := item.([]any); ok && len(tuple) > 0 {
		item = tuple[0]
	}
	rec, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range IDKeys {
		switch id := rec[key].(type) {
		case string:
			if id = strings.TrimSpace(id); id != "" {
				return id, true
			}
		case json.Number:
			return id.String(), true
		}
	}
	return "", false
}

// sortedKeys makes the walk order independent of map iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ContentHash derives an ID from the listing's address, area and rent as
// written on the page. Equal content yields the same ID on every run.
func ContentHash(address, area, rent string) string {
	var b bytes.Buffer
	for i, part := range []string{address, area, rent} {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(normalize(part))
	}
	sum := sha256.Sum256(b.Bytes())
	return "h" + hex.EncodeToString(sum[:])[:hashLen]
}

func normalize(s string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}
