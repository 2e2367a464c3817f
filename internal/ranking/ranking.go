// Package ranking scores catalog documents against a search term.
//
// Matching is a case-insensitive substring test on every field. Each field
// that matches contributes between its weight and twice its weight, growing
// with the number of occurrences, so a single name hit always outranks any
// combination of alt-name and description hits.
package ranking

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Field weights. Each weight is more than twice the sum of the lower ones.
const (
	WeightName        = 100.0
	WeightAltName     = 10.0
	WeightDescription = 1.0
)

// Fold normalizes s for matching: compatibility forms are composed (NFKC)
// and the result is case folded. A Caser keeps state, so each call gets its own.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Document is the searchable form of a manga. Folded fields are computed
// once by NewDocument.
type Document struct {
	ID   int64
	Name string

	name        string
	altNames    []string
	description string
}

// NewDocument builds a document from a manga's text fields.
func NewDocument(id int64, name string, altNames []string, description string) Document {
	d := Document{
		ID:          id,
		Name:        name,
		name:        Fold(name),
		description: Fold(description),
	}
	for _, alt := range altNames {
		if alt = Fold(alt); alt != "" {
			d.altNames = append(d.altNames, alt)
		}
	}
	return d
}

// Score returns the relevance of doc for term. ok is false when the term
// occurs in no field; such documents must be left out of results.
// The term is folded here, callers scoring many documents should use
// ScoreFolded.
func Score(doc Document, term string) (score float64, ok bool) {
	return ScoreFolded(doc, Fold(term))
}

// ScoreFolded is Score for a term already passed through Fold. Only the
// empty term matches nothing; whitespace is matched like any other text.
func ScoreFolded(doc Document, term string) (float64, bool) {
	if term == "" {
		return 0, false
	}

	altHits := 0
	for _, alt := range doc.altNames {
		altHits += strings.Count(alt, term)
	}

	score := field(WeightName, strings.Count(doc.name, term)) +
		field(WeightAltName, altHits) +
		field(WeightDescription, strings.Count(doc.description, term))
	return score, score > 0
}

// field saturates towards twice the weight as occurrences grow.
func field(weight float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return weight * (2 - 1/float64(1+n))
}

// Hit is a scored document.
type Hit struct {
	ID    int64
	Name  string
	Score float64
}

// Less orders hits by score descending, then name ascending, then ID
// ascending. It is a total order over hits with distinct IDs.
func Less(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// Compare is Less in the three-way form expected by slices.SortFunc.
func Compare(a, b Hit) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}
