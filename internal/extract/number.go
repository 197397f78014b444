package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var plainNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// ParseMoney parses an amount in German notation, where "." groups
// thousands and "," marks decimals: "1.234,50" is 1234.50.
//
// The dots must be stripped before the comma is turned into a point;
// doing it the other way round turns "1.234,50" into 1.234.
func ParseMoney(s string) (float64, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	norm = strings.Replace(norm, ",", ".", 1)
	return parsePlain(s, norm)
}

// ParseDecimal parses a room count or an area. A comma is the decimal
// mark; without one, a point is.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		return ParseMoney(s)
	}
	return parsePlain(s, s)
}

func parsePlain(orig, norm string) (float64, error) {
	if !plainNumberRe.MatchString(norm) {
		return 0, fmt.Errorf("invalid number %q", orig)
	}
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", orig, err)
	}
	return v, nil
}
