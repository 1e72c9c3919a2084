package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CategoryGeneral is returned when no keyword matches.
const CategoryGeneral = "general"

type keyword struct {
	term   string
	weight int
}

type category struct {
	name     string
	keywords []keyword
}

// categories is ordered; earlier entries win ties.
var categories = []category{
	{"plumbing", []keyword{
		{"plomero", 3}, {"plomeria", 3}, {"fuga", 2}, {"tuberia", 2}, {"lavabo", 2}, {"drenaje", 2},
		{"boiler", 2}, {"calentador", 2}, {"wc", 2}, {"excusado", 2}, {"grifo", 1}, {"llave", 1},
		{"plumber", 3}, {"leak", 2}, {"pipe", 2}, {"sink", 2}, {"toilet", 2},
	}},
	{"electrical", []keyword{
		{"electricista", 3}, {"electrico", 2}, {"cortocircuito", 3}, {"apagador", 2}, {"contacto", 1},
		{"cableado", 2}, {"foco", 1}, {"luminaria", 2}, {"breaker", 2}, {"pastilla", 1},
		{"electrician", 3}, {"wiring", 2}, {"outlet", 2}, {"switch", 1},
	}},
	{"cleaning", []keyword{
		{"limpieza", 3}, {"limpiar", 2}, {"aseo", 2}, {"desinfeccion", 2}, {"lavado", 1}, {"alfombra", 1},
		{"cleaning", 3}, {"clean", 2}, {"maid", 2},
	}},
	{"painting", []keyword{
		{"pintor", 3}, {"pintura", 3}, {"pintar", 3}, {"impermeabilizar", 2}, {"resane", 2}, {"barniz", 1},
		{"painter", 3}, {"paint", 3},
	}},
	{"carpentry", []keyword{
		{"carpintero", 3}, {"carpinteria", 3}, {"madera", 2}, {"closet", 2}, {"puerta", 1}, {"mueble", 2},
		{"carpenter", 3}, {"wood", 2}, {"cabinet", 2},
	}},
	{"gardening", []keyword{
		{"jardinero", 3}, {"jardin", 3}, {"pasto", 2}, {"poda", 2}, {"podar", 2}, {"arbol", 1}, {"riego", 2},
		{"gardener", 3}, {"garden", 3}, {"lawn", 2},
	}},
	{"appliances", []keyword{
		{"refrigerador", 3}, {"lavadora", 3}, {"secadora", 3}, {"estufa", 2}, {"microondas", 2},
		{"minisplit", 3}, {"aire", 1}, {"acondicionado", 2},
		{"fridge", 3}, {"washer", 3}, {"dryer", 3}, {"appliance", 3},
	}},
	{"moving", []keyword{
		{"mudanza", 3}, {"flete", 3}, {"cargar", 1}, {"transportar", 2},
		{"moving", 3}, {"movers", 3},
	}},
}

type Classification struct {
	Category string         `json:"category"`
	Score    int            `json:"score"`
	Scores   map[string]int `json:"scores"`
}

// Classify scores text against a weighted keyword table of service categories.
func Classify(text string) Classification {
	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}

	result := Classification{Category: CategoryGeneral, Scores: make(map[string]int, len(categories))}
	for _, c := range categories {
		score := 0
		for _, kw := range c.keywords {
			score += counts[kw.term] * kw.weight
		}
		result.Scores[c.name] = score
		if score > result.Score {
			result.Category = c.name
			result.Score = score
		}
	}
	return result
}

// tokenize lower-cases, strips diacritics, and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
