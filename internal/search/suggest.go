package search

import (
	"cmp"
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"kmanga/internal/model"
	"kmanga/internal/ranking"
)

type suggestion struct {
	manga    model.Manga
	distance int
}

// Suggest returns up to limit manga whose name or alt name is close to term,
// for queries that matched nothing. A title qualifies when the term's
// characters appear in it in order, or when it is within a small edit
// distance of the term. Closer titles come first.
func (idx *Index) Suggest(term string, limit int) []model.Manga {
	snap := idx.current.Load()
	folded := ranking.Fold(term)
	if snap == nil || folded == "" || limit <= 0 {
		return nil
	}

	threshold := distanceThreshold(len([]rune(folded)))
	best := make(map[int]int) // manga index -> distance
	for i, m := range snap.manga {
		for _, title := range append([]string{m.Name}, m.AltNameStrings()...) {
			target := ranking.Fold(title)
			d := fuzzy.LevenshteinDistance(folded, target)
			if !fuzzy.MatchNormalizedFold(folded, target) && d > threshold {
				continue
			}
			if prev, ok := best[i]; !ok || d < prev {
				best[i] = d
			}
		}
	}

	found := make([]suggestion, 0, len(best))
	for i, d := range best {
		found = append(found, suggestion{manga: snap.manga[i], distance: d})
	}
	slices.SortFunc(found, func(a, b suggestion) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		if c := cmp.Compare(a.manga.Name, b.manga.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.manga.ID, b.manga.ID)
	})

	out := make([]model.Manga, 0, min(limit, len(found)))
	for _, s := range found[:min(limit, len(found))] {
		out = append(out, s.manga)
	}
	return out
}

// distanceThreshold scales the allowed typos with the term length.
func distanceThreshold(n int) int {
	return max(1, min(n/5, 3))
}
