package filter

import (
	"fmt"

	"toperty/server/internal/models"
)

type antiquityCategory struct {
	label     string
	encodings []string
}

// antiquityCategories maps categories 1..5 to every encoding the ingestion
// sources have used for them.
var antiquityCategories = map[int]antiquityCategory{
	1: {label: "Menos de 1 año", encodings: []string{"LESS_THAN_1_YEAR", "Menos de 1 año", "1"}},
	2: {label: "1 a 8 años", encodings: []string{"FROM_1_TO_8_YEARS", "1 a 8 años", "2"}},
	3: {label: "9 a 15 años", encodings: []string{"FROM_9_TO_15_YEARS", "9 a 15 años", "3"}},
	4: {label: "16 a 30 años", encodings: []string{"FROM_16_TO_30_YEARS", "16 a 30 años", "4"}},
	5: {label: "Más de 30 años", encodings: []string{"MORE_THAN_30_YEARS", "Más de 30 años", "5"}},
}

var antiquityUnspecified = []string{"UNDEFINED", "Sin especificar", "", "N/A"}

// AntiquityCategory returns the category 1..5 of a stored value, 0 when it
// is unspecified and -1 when it is not a known encoding.
func AntiquityCategory(raw *string) int {
	if raw == nil {
		return 0
	}
	for _, u := range antiquityUnspecified {
		if *raw == u {
			return 0
		}
	}
	for n, c := range antiquityCategories {
		for _, e := range c.encodings {
			if *raw == e {
				return n
			}
		}
	}
	return -1
}

// AntiquityLabel is the Spanish display label of a stored value.
func AntiquityLabel(raw *string) *string {
	n := AntiquityCategory(raw)
	switch {
	case n > 0:
		l := antiquityCategories[n].label
		return &l
	case n == 0:
		l := "Sin especificar"
		return &l
	}
	return raw
}

// Antiquity selects the requested categories plus, when asked, the
// unspecified encodings.
func Antiquity(categories []int, includeUnspecified bool) (Predicate, error) {
	var encodings []string
	for _, n := range categories {
		c, ok := antiquityCategories[n]
		if !ok {
			return nil, fmt.Errorf("%w: antiquity category %d", ErrInvalidFilter, n)
		}
		encodings = append(encodings, c.encodings...)
	}

	get := func(p *models.Property) *string { return p.Antiquity }
	var preds []Predicate
	if len(encodings) > 0 {
		preds = append(preds, oneOf("p.antiquity", get, encodings))
	}
	if includeUnspecified {
		preds = append(preds, unspecifiedAntiquity(get))
	}
	return Or(preds...), nil
}

func unspecifiedAntiquity(get field) Predicate {
	return static(
		func(p *models.Property) bool { return AntiquityCategory(get(p)) == 0 },
		"p.antiquity IS NULL OR p.antiquity IN (?)", antiquityUnspecified,
	)
}
