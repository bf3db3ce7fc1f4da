package filter

import (
	"regexp"
	"strconv"
)

// Kind tags a stored categorical value.
type Kind int

const (
	Unspecified Kind = iota
	Numeric
	Symbolic
)

// Value is a rooms/baths/garages column value after normalization.
type Value struct {
	Kind   Kind
	Number int
	Label  string
}

// unspecifiedMarkers are the non-null spellings of "no data" seen in the store.
var unspecifiedMarkers = []string{"", "N/A", "Sin especificar"}

// ParseValue classifies a raw column value. Only plain ASCII digit strings
// are Numeric; anything else that is not an unspecified marker is Symbolic.
func ParseValue(raw *string) Value {
	if raw == nil || isUnspecifiedMarker(*raw) {
		return Value{Kind: Unspecified}
	}
	if isDigits(*raw) {
		if n, err := strconv.Atoi(*raw); err == nil {
			return Value{Kind: Numeric, Number: n, Label: *raw}
		}
	}
	return Value{Kind: Symbolic, Label: *raw}
}

// Display returns the value as an int when numeric, the raw label when
// symbolic and nil when unspecified.
func (v Value) Display() interface{} {
	switch v.Kind {
	case Numeric:
		return v.Number
	case Symbolic:
		return v.Label
	default:
		return nil
	}
}

func isUnspecifiedMarker(s string) bool {
	for _, m := range unspecifiedMarkers {
		if s == m {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var stratumPattern = regexp.MustCompile(`Estrato\s*(\d+)`)

// StratumLevel extracts N from "Estrato N".
func StratumLevel(raw *string) *int {
	if raw == nil {
		return nil
	}
	m := stratumPattern.FindStringSubmatch(*raw)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
