package filter

import (
	"fmt"
	"strconv"
	"strings"

	"toperty/server/internal/models"
)

// MaxStratum is the highest socio-economic stratum level.
const MaxStratum = 6

// TokenKind distinguishes the three shapes a requested value can take.
type TokenKind int

const (
	TokenUnspecified TokenKind = iota
	TokenExact
	TokenAtLeast
)

// Token is one requested value for a categorical attribute.
type Token struct {
	Kind TokenKind
	Raw  string
	Min  int
}

// ParseToken reads "unspecified" (any case), "N+" or an exact value.
func ParseToken(s string) (Token, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Token{}, fmt.Errorf("%w: empty value", ErrInvalidFilter)
	case strings.EqualFold(s, "unspecified"):
		return Token{Kind: TokenUnspecified, Raw: s}, nil
	case strings.HasSuffix(s, "+"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
		if err != nil {
			return Token{}, fmt.Errorf("%w: %q is not a minimum", ErrInvalidFilter, s)
		}
		return Token{Kind: TokenAtLeast, Raw: s, Min: n}, nil
	}
	return Token{Kind: TokenExact, Raw: s}, nil
}

func parseTokens(values []string) ([]Token, error) {
	tokens := make([]Token, 0, len(values))
	for _, v := range values {
		t, err := ParseToken(v)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

type field func(p *models.Property) *string

// unspecified matches NULL and every unspecified marker.
func unspecified(column string, get field) Predicate {
	return static(
		func(p *models.Property) bool { return ParseValue(get(p)).Kind == Unspecified },
		fmt.Sprintf("%s IS NULL OR %s IN (?)", column, column), unspecifiedMarkers,
	)
}

func equals(column string, get field, want string) Predicate {
	return static(
		func(p *models.Property) bool { v := get(p); return v != nil && *v == want },
		column+" = ?", want,
	)
}

func oneOf(column string, get field, want []string) Predicate {
	set := make(map[string]struct{}, len(want))
	for _, w := range want {
		set[w] = struct{}{}
	}
	return static(
		func(p *models.Property) bool {
			v := get(p)
			if v == nil {
				return false
			}
			_, ok := set[*v]
			return ok
		},
		column+" IN (?)", want,
	)
}

// atLeast matches purely numeric stored values >= n. Symbolic values such
// as "Más de 10" never satisfy a minimum.
func atLeast(column string, get field, n int) Predicate {
	return newPredicate(
		func(p *models.Property) bool {
			v := ParseValue(get(p))
			return v.Kind == Numeric && v.Number >= n
		},
		func(d Dialect) (string, []interface{}) {
			return fmt.Sprintf("(CASE WHEN %s THEN CAST(%s AS INTEGER) END) >= ?", d.numericText(column), column),
				[]interface{}{n}
		},
	)
}

func categorical(column string, get field, values []string) (Predicate, error) {
	tokens, err := parseTokens(values)
	if err != nil {
		return nil, err
	}
	var preds []Predicate
	for _, t := range tokens {
		switch t.Kind {
		case TokenUnspecified:
			preds = append(preds, unspecified(column, get))
		case TokenAtLeast:
			preds = append(preds, atLeast(column, get, t.Min))
		default:
			preds = append(preds, equals(column, get, t.Raw))
		}
	}
	return Or(preds...), nil
}

// Rooms builds the OR of the requested room counts. No values, no predicate.
func Rooms(values []string) (Predicate, error) {
	return categorical("p.rooms", func(p *models.Property) *string { return p.Rooms }, values)
}

func Baths(values []string) (Predicate, error) {
	return categorical("p.baths", func(p *models.Property) *string { return p.Baths }, values)
}

func Garages(values []string) (Predicate, error) {
	return categorical("p.garages", func(p *models.Property) *string { return p.Garages }, values)
}

// Stratum matches the stored "Estrato N" labels. "N+" selects levels N
// through MaxStratum.
func Stratum(values []string) (Predicate, error) {
	tokens, err := parseTokens(values)
	if err != nil {
		return nil, err
	}
	get := func(p *models.Property) *string { return p.Stratum }
	var preds []Predicate
	for _, t := range tokens {
		switch t.Kind {
		case TokenUnspecified:
			preds = append(preds, unspecified("p.stratum", get))
		case TokenAtLeast:
			var labels []string
			for n := t.Min; n <= MaxStratum; n++ {
				labels = append(labels, stratumLabel(n))
			}
			if len(labels) == 0 {
				return nil, fmt.Errorf("%w: stratum %q above %d", ErrInvalidFilter, t.Raw, MaxStratum)
			}
			preds = append(preds, oneOf("p.stratum", get, labels))
		default:
			preds = append(preds, equals("p.stratum", get, "Estrato "+t.Raw))
		}
	}
	return Or(preds...), nil
}

func stratumLabel(n int) string { return "Estrato " + strconv.Itoa(n) }
