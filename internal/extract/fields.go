package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flat_bot/internal/model"
)

// moneyPattern matches German amounts. A match must not continue a digit
// run, so "1234.50" or "1 050,00" never yield their tail as the rent.
const moneyPattern = `\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?`

// DetailSelectors name sub-elements that hold a listing's facts when the
// surrounding block also carries buttons and other noise.
var DetailSelectors = []string{"span._tb_left"}

var (
	roomsRe        = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*-?\s*(zimmer(anzahl)?|zi\.|zi\b|rooms?\b)`)
	roomsLabeledRe = regexp.MustCompile(`(?i)zimmer(?:anzahl)?\s*:\s*(\d+(?:[.,]\d+)?)`)
	areaRe         = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:m²|m2\b|qm\b)`)
	labeledRentRe  = regexp.MustCompile(`(?i)(?:kaltmiete|cold\s+rent)\s*:?\s*(?:ca\.\s*)?(` + moneyPattern + `)(?:\s*$|\s*[^\d.,\s]|[.,](?:$|\D))`)
	bareRentRe     = regexp.MustCompile(`(?:^|[^\d.,\s]|(?:^|\D)[.,])\s*(` + moneyPattern + `)\s*(?:€|(?i:eur)\b)`)
	addressLabelRe = regexp.MustCompile(`(?i)^(?:adresse|anschrift|address)\s*:?$`)
	streetRe       = regexp.MustCompile(`\p{Lu}[\p{L}.\-]*(?:\s+\p{L}[\p{L}.\-]*)?\s+\d+\s*[a-zA-Z]?\s*,?\s+\d{5}\s+(?:Berlin\s*[-,/]?\s*)?\p{Lu}[\p{L}\-]+`)
)

// Fields holds the values found in one candidate block. Raw strings are
// kept as written on the page; the parsed counterparts carry whether
// parsing succeeded.
type Fields struct {
	// Text is the full block text, used for district and keyword matching.
	Text string

	RoomsRaw string
	Rooms    model.Measure

	AreaRaw string
	Area    model.Measure

	RentRaw     string
	Rent        float64
	RentOK      bool
	RentLabeled bool

	Address   string
	AddressOK bool

	Link string
}

// ParseFields extracts listing fields from a candidate block.
func ParseFields(block *goquery.Selection) Fields {
	f := Fields{Text: Text(block)}

	detail := f.Text
	for _, sel := range DetailSelectors {
		if d := block.Find(sel).First(); d.Length() > 0 {
			detail = Text(d)
			break
		}
	}

	f.RoomsRaw, f.Rooms = parseRooms(detail)
	if m := areaRe.FindStringSubmatch(detail); m != nil {
		f.AreaRaw = m[1]
		if v, err := ParseDecimal(m[1]); err == nil {
			f.Area = model.KnownMeasure(v)
		}
	}
	f.parseRent(detail)
	f.Address, f.AddressOK = parseAddress(block, detail)
	f.Link = firstLink(block)
	return f
}

func parseRooms(text string) (string, model.Measure) {
	for _, m := range roomsRe.FindAllStringSubmatch(text, -1) {
		// "3 Zimmeranzahl: 2" belongs to the preceding field, not the rooms.
		if m[3] != "" {
			continue
		}
		if v, err := ParseDecimal(m[1]); err == nil {
			return m[1], model.KnownMeasure(v)
		}
	}
	if m := roomsLabeledRe.FindStringSubmatch(text); m != nil {
		if v, err := ParseDecimal(m[1]); err == nil {
			return m[1], model.KnownMeasure(v)
		}
	}
	return "", model.Measure{}
}

func (f *Fields) parseRent(text string) {
	if m := labeledRentRe.FindStringSubmatch(text); m != nil {
		if v, err := ParseMoney(m[1]); err == nil {
			f.RentRaw, f.Rent, f.RentOK, f.RentLabeled = m[1], v, true, true
			return
		}
	}
	if m := bareRentRe.FindStringSubmatch(text); m != nil {
		if v, err := ParseMoney(m[1]); err == nil {
			f.RentRaw, f.Rent, f.RentOK = m[1], v, true
		}
	}
}

func parseAddress(block *goquery.Selection, detail string) (string, bool) {
	if addr := labeledAddress(block); addr != "" {
		return addr, true
	}
	if i := strings.LastIndex(detail, "|"); i >= 0 {
		if seg := strings.TrimSpace(detail[i+1:]); seg != "" {
			return seg, true
		}
	}
	if m := streetRe.FindString(detail); m != "" {
		return strings.TrimSpace(m), true
	}
	return model.UnknownAddress, false
}

func labeledAddress(block *goquery.Selection) string {
	var addr string
	block.Find("dt, th").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !addressLabelRe.MatchString(Text(label)) {
			return true
		}
		addr = Text(label.NextFiltered("dd, td"))
		return addr == ""
	})
	if addr != "" {
		return addr
	}

	block.Find(`address, [class*="address"], [class*="adresse"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		addr = Text(s)
		return addr == ""
	})
	return addr
}

func firstLink(block *goquery.Selection) string {
	var link string
	block.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		switch {
		case href == "", strings.HasPrefix(href, "#"),
			strings.HasPrefix(href, "javascript:"), strings.HasPrefix(href, "mailto:"), strings.HasPrefix(href, "tel:"):
			return true
		}
		link = href
		return false
	})
	return link
}
