package prsn

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unit is a parsed udunits unit expression: base unit symbols mapped to
// their integer powers. Two Units are equal when they carry the same
// symbols with the same powers, regardless of spelling or ordering in the
// source string ("kg m-2 s-1" equals "kg / m**2 / s").
type Unit map[string]int

// unitSynonyms folds alternate spellings onto one canonical symbol.
var unitSynonyms = map[string]string{
	"day":     "d",
	"second":  "s",
	"seconds": "s",
}

var unitToken = regexp.MustCompile(`^([a-zA-Z]+)(?:\^?(-?\d+))?$`)

// ParseUnit parses a udunits-style unit string. Terms are separated by
// whitespace, '.', or '*' (multiplication) and '/' (division); powers may
// be written as a bare suffix ("m-2"), with '**', or with '^'.
func ParseUnit(s string) (Unit, error) {
	u := make(Unit)
	// Fold '**' powers into '^' so that '*' only ever separates terms.
	s = strings.ReplaceAll(s, "**", "^")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '.' || r == '*' || r == '/'
	})
	// FieldsFunc loses the separators, so walk the original string to
	// spot which terms a '/' divides by.
	rest := s
	for _, field := range fields {
		idx := strings.Index(rest, field)
		sign := 1
		if strings.Contains(rest[:idx], "/") {
			sign = -1
		}
		rest = rest[idx+len(field):]

		m := unitToken.FindStringSubmatch(field)
		if m == nil {
			return nil, fmt.Errorf("cannot parse unit term %q in %q", field, s)
		}
		symbol := m[1]
		if canonical, ok := unitSynonyms[strings.ToLower(symbol)]; ok {
			symbol = canonical
		}
		power := 1
		if m[2] != "" {
			p, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("cannot parse power %q in %q", m[2], s)
			}
			power = p
		}
		u[symbol] += sign * power
		if u[symbol] == 0 {
			delete(u, symbol)
		}
	}
	if len(u) == 0 {
		return nil, fmt.Errorf("empty unit expression %q", s)
	}
	return u, nil
}

// Equal reports whether two units have identical symbols and powers.
func (u Unit) Equal(other Unit) bool {
	if len(u) != len(other) {
		return false
	}
	for symbol, power := range u {
		if other[symbol] != power {
			return false
		}
	}
	return true
}
