package filter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"toperty/server/internal/models"
)

type typeRule struct {
	words   []string // whole words, any of which identifies the type
	exclude []string // substrings that disqualify a title
}

var typeRules = map[string]typeRule{
	"apartamento": {words: []string{"apartamento", "apto"}, exclude: []string{"bodega", "local", "oficina"}},
	"casa":        {words: []string{"casa"}, exclude: []string{"apartamento", "apto", "bodega", "local", "oficina"}},
	"oficina":     {words: []string{"oficina"}, exclude: []string{"apartamento", "casa", "bodega"}},
	"local":       {words: []string{"local"}, exclude: []string{"apartamento", "casa", "oficina"}},
	"bodega":      {words: []string{"bodega"}},
	"lote":        {words: []string{"lote"}},
	"finca":       {words: []string{"finca"}},
}

var typeAliases = map[string]string{
	"apartment":  "apartamento",
	"apto":       "apartamento",
	"house":      "casa",
	"office":     "oficina",
	"commercial": "local",
	"store":      "local",
	"warehouse":  "bodega",
	"lot":        "lote",
	"land":       "lote",
	"farm":       "finca",
}

var lower = cases.Lower(language.Spanish)

func titleOf(p *models.Property) string {
	if p.Title == nil {
		return ""
	}
	return lower.String(*p.Title)
}

// likeEscaper escapes LIKE wildcards for patterns using ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func hasWord(word string) Predicate {
	return static(
		func(p *models.Property) bool {
			return p.Title != nil && strings.Contains(" "+titleOf(p)+" ", " "+word+" ")
		},
		`(' ' || LOWER(p.title) || ' ') LIKE ? ESCAPE '\'`, "% "+likeEscaper.Replace(word)+" %",
	)
}

func lacks(substr string) Predicate {
	return static(
		func(p *models.Property) bool {
			return p.Title != nil && !strings.Contains(titleOf(p), substr)
		},
		`LOWER(p.title) NOT LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(substr)+"%",
	)
}

func contains(substr string) Predicate {
	return static(
		func(p *models.Property) bool {
			return p.Title != nil && strings.Contains(titleOf(p), substr)
		},
		`LOWER(p.title) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(substr)+"%",
	)
}

// PropertyType infers the listing type from its title. Known types need one
// of their keywords as a whole word and none of the conflicting keywords
// anywhere; unknown types fall back to a substring match. The requested
// types are ORed.
func PropertyType(types []string) Predicate {
	var preds []Predicate
	for _, t := range types {
		key := lower.String(strings.TrimSpace(t))
		if key == "" {
			continue
		}
		if alias, ok := typeAliases[key]; ok {
			key = alias
		}
		rule, ok := typeRules[key]
		if !ok {
			preds = append(preds, contains(key))
			continue
		}
		words := make([]Predicate, 0, len(rule.words))
		for _, w := range rule.words {
			words = append(words, hasWord(w))
		}
		all := []Predicate{Or(words...)}
		for _, x := range rule.exclude {
			all = append(all, lacks(x))
		}
		preds = append(preds, And(all...))
	}
	return Or(preds...)
}
