package search

import (
	"github.com/google/uuid"

	"kmanga/internal/model"
	"kmanga/internal/ranking"
)

// Hit is a manga with its relevance score.
type Hit struct {
	Manga model.Manga
	Score float64
}

func (h Hit) rank() ranking.Hit {
	return ranking.Hit{ID: h.Manga.ID, Name: h.Manga.Name, Score: h.Score}
}

// Result is the full ranked answer to a query. The ordering is computed
// once; At and Slice are views over it, so pages taken from one Result
// always agree with All.
type Result struct {
	hits       []Hit
	generation uuid.UUID
}

// Len returns the number of matching manga.
func (r Result) Len() int {
	return len(r.hits)
}

// At returns the i-th manga. It panics if i is out of range.
func (r Result) At(i int) model.Manga {
	return r.hits[i].Manga
}

// Slice returns the results in [i, j). Bounds are clamped to the result.
func (r Result) Slice(i, j int) Result {
	i = clamp(i, 0, len(r.hits))
	j = clamp(j, i, len(r.hits))
	return Result{hits: r.hits[i:j:j], generation: r.generation}
}

// Page returns at most limit results starting at offset.
func (r Result) Page(offset, limit int) Result {
	if limit < 0 {
		limit = 0
	}
	offset = clamp(offset, 0, len(r.hits))
	return r.Slice(offset, offset+min(limit, len(r.hits)-offset))
}

// All returns the manga in rank order.
func (r Result) All() []model.Manga {
	out := make([]model.Manga, len(r.hits))
	for i, h := range r.hits {
		out[i] = h.Manga
	}
	return out
}

// Hits returns the manga in rank order together with their scores.
func (r Result) Hits() []Hit {
	out := make([]Hit, len(r.hits))
	copy(out, r.hits)
	return out
}

// IDs returns the manga IDs in rank order.
func (r Result) IDs() []int64 {
	ids := make([]int64, len(r.hits))
	for i, h := range r.hits {
		ids[i] = h.Manga.ID
	}
	return ids
}

// Generation identifies the snapshot the result was computed from.
func (r Result) Generation() uuid.UUID {
	return r.generation
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
