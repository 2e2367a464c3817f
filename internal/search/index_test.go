package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"kmanga/internal/model"
	"kmanga/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createManga(t *testing.T, s *storage.SQLite, name, description string, alts ...string) model.Manga {
	t.Helper()
	m := model.Manga{Name: name, Description: description}
	for _, a := range alts {
		m.AltNames = append(m.AltNames, model.AltName{Name: a})
	}
	if err := s.CreateManga(context.Background(), &m); err != nil {
		t.Fatalf("create manga %q: %v", name, err)
	}
	return m
}

func mustRefresh(t *testing.T, idx *Index) {
	t.Helper()
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

// fakeSource serves a fixed catalog, or err when set.
type fakeSource struct {
	mu    sync.Mutex
	manga []model.Manga
	err   error
}

func (f *fakeSource) ListManga(context.Context) ([]model.Manga, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Manga(nil), f.manga...), nil
}

func (f *fakeSource) set(list []model.Manga, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manga = list
	f.err = err
}

func TestSearchMatchesDescription(t *testing.T) {
	s := newTestStore(t)
	for i := 1; i <= 4; i++ {
		createManga(t, s, fmt.Sprintf("Manga %d", i), fmt.Sprintf("Description of manga %d", i))
	}
	idx := New(s, testLogger())
	mustRefresh(t, idx)

	if diff := cmp.Diff(4, idx.Search("Description").Len()); diff != "" {
		t.Errorf("result count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(4, idx.Search("description").Len()); diff != "" {
		t.Errorf("lowercase result count mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchSeesRenameOnlyAfterRefresh(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := createManga(t, s, "Manga 1", "Description 1")
	createManga(t, s, "Manga 2", "Description 2")
	idx := New(s, testLogger())
	mustRefresh(t, idx)

	a.Name = "keyword"
	if err := s.UpdateManga(ctx, &a); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := idx.Search("keyword").Len(); got != 0 {
		t.Errorf("rename must be invisible before refresh, got %d results", got)
	}

	mustRefresh(t, idx)
	if diff := cmp.Diff([]int64{a.ID}, idx.Search("keyword").IDs()); diff != "" {
		t.Errorf("after rename (-want +got):\n%s", diff)
	}

	a.Name = "Manga 1"
	if err := s.UpdateManga(ctx, &a); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if diff := cmp.Diff([]int64{a.ID}, idx.Search("keyword").IDs()); diff != "" {
		t.Errorf("revert must be invisible before refresh (-want +got):\n%s", diff)
	}

	mustRefresh(t, idx)
	if got := idx.Search("keyword").Len(); got != 0 {
		t.Errorf("expected no results after revert, got %d", got)
	}
}

func TestNameMatchRanksBeforeDescriptionMatch(t *testing.T) {
	s := newTestStore(t)
	c := createManga(t, s, "Another", "This one has the keyword in its description")
	b := createManga(t, s, "keyword", "Plain description")
	createManga(t, s, "Unrelated", "Nothing to see")
	idx := New(s, testLogger())
	mustRefresh(t, idx)

	if diff := cmp.Diff([]int64{b.ID, c.ID}, idx.Search("keyword").IDs()); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchRanksAltNamesBetweenNameAndDescription(t *testing.T) {
	s := newTestStore(t)
	desc := createManga(t, s, "A", "about a wizard")
	alt := createManga(t, s, "B", "", "The Wizard")
	name := createManga(t, s, "Wizard Academy", "")
	idx := New(s, testLogger())
	mustRefresh(t, idx)

	want := []int64{name.ID, alt.ID, desc.ID}
	if diff := cmp.Diff(want, idx.Search("WIZARD").IDs()); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchTiesBreakByNameThenID(t *testing.T) {
	src := &fakeSource{manga: []model.Manga{
		{ID: 5, Name: "Beta", Description: "shared"},
		{ID: 4, Name: "Alpha", Description: "shared"},
		{ID: 2, Name: "Beta", Description: "shared"},
	}}
	idx := New(src, testLogger())
	mustRefresh(t, idx)

	if diff := cmp.Diff([]int64{4, 2, 5}, idx.Search("shared").IDs()); diff != "" {
		t.Errorf("tie-break mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchReturnsExactlyMatchingSet(t *testing.T) {
	catalog := []model.Manga{
		{ID: 1, Name: "One Piece", Description: "Pirates", AltNames: []model.AltName{{Name: "ワンピース"}}},
		{ID: 2, Name: "Naruto", Description: "Ninja story"},
		{ID: 3, Name: "Piece of Cake", Description: "A cooking manga"},
		{ID: 4, Name: "Bleach", Description: "Soul reapers", AltNames: []model.AltName{{Name: "Burīchi"}}},
		{ID: 5, Name: "Gone", Description: "Pirates again", Status: model.MangaDeleted},
	}
	idx := New(&fakeSource{manga: catalog}, testLogger())
	mustRefresh(t, idx)

	terms := []string{"piece", "PIRATES", "ninja", "ワン", "burī", "a", "zzz", ""}
	for _, term := range terms {
		t.Run(term, func(t *testing.T) {
			want := map[int64]bool{}
			if strings.TrimSpace(term) != "" {
				for _, m := range catalog {
					if m.Status == model.MangaDeleted {
						continue
					}
					fields := append([]string{m.Name, m.Description}, m.AltNameStrings()...)
					for _, f := range fields {
						if strings.Contains(strings.ToLower(f), strings.ToLower(term)) {
							want[m.ID] = true
						}
					}
				}
			}
			got := map[int64]bool{}
			for _, id := range idx.Search(term).IDs() {
				got[id] = true
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Search(%q) set mismatch (-want +got):\n%s", term, diff)
			}
		})
	}
}

func TestSliceAgreesWithFullOrder(t *testing.T) {
	var catalog []model.Manga
	for i := 1; i <= 7; i++ {
		catalog = append(catalog, model.Manga{
			ID:          int64(i),
			Name:        fmt.Sprintf("Title %d", 8-i),
			Description: strings.Repeat("match ", i%3+1),
		})
	}
	idx := New(&fakeSource{manga: catalog}, testLogger())
	mustRefresh(t, idx)

	res := idx.Search("match")
	all := res.All()
	if len(all) != 7 {
		t.Fatalf("expected 7 results, got %d", len(all))
	}
	for i := 0; i <= len(all); i++ {
		for j := i; j <= len(all); j++ {
			page := res.Slice(i, j)
			if diff := cmp.Diff(all[i:j], page.All()); diff != "" {
				t.Errorf("Slice(%d, %d) mismatch (-want +got):\n%s", i, j, diff)
			}
			for k := i; k < j; k++ {
				if page.At(k-i).ID != res.At(k).ID {
					t.Errorf("Slice(%d, %d).At(%d) disagrees with At(%d)", i, j, k-i, k)
				}
			}
		}
	}

	if got := res.Slice(-3, 100).Len(); got != 7 {
		t.Errorf("clamped slice length = %d, want 7", got)
	}
	if got := res.Slice(5, 2).Len(); got != 0 {
		t.Errorf("inverted slice length = %d, want 0", got)
	}
	if diff := cmp.Diff(all[4:6], res.Page(4, 2).All()); diff != "" {
		t.Errorf("Page(4, 2) mismatch (-want +got):\n%s", diff)
	}
	if got := res.Page(6, 10).Len(); got != 1 {
		t.Errorf("last page length = %d, want 1", got)
	}
}

func TestSearchBeforeFirstRefresh(t *testing.T) {
	idx := New(&fakeSource{}, testLogger())

	res := idx.Search("anything")
	if res.Len() != 0 || len(res.All()) != 0 {
		t.Errorf("expected empty result, got %d", res.Len())
	}
	if idx.Generation() != uuid.Nil {
		t.Errorf("expected nil generation, got %s", idx.Generation())
	}
	if idx.Suggest("anything", 5) != nil {
		t.Error("expected no suggestions")
	}
	if diff := cmp.Diff(Stats{}, idx.Stats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{manga: []model.Manga{{ID: 1, Name: "Kept", Description: "old"}}}
	idx := New(src, testLogger())
	mustRefresh(t, idx)
	gen := idx.Generation()

	cause := errors.New("disk on fire")
	src.set([]model.Manga{{ID: 2, Name: "New"}}, cause)

	err := idx.Refresh(context.Background())
	var rebuildErr *RebuildError
	if !errors.As(err, &rebuildErr) {
		t.Fatalf("expected *RebuildError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected error to wrap the cause, got %v", err)
	}

	if diff := cmp.Diff([]int64{1}, idx.Search("kept").IDs()); diff != "" {
		t.Errorf("previous snapshot lost (-want +got):\n%s", diff)
	}
	if idx.Generation() != gen {
		t.Errorf("generation changed after failed refresh")
	}
}

func TestRefreshFailureBeforeFirstBuild(t *testing.T) {
	idx := New(&fakeSource{err: errors.New("boom")}, testLogger())
	if err := idx.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if idx.Search("boom").Len() != 0 {
		t.Error("expected empty result")
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	src := &fakeSource{manga: []model.Manga{
		{ID: 1, Name: "One", Description: "shared"},
		{ID: 2, Name: "Two", Description: "shared"},
	}}
	idx := New(src, testLogger())
	mustRefresh(t, idx)
	first := idx.Search("shared")

	mustRefresh(t, idx)
	second := idx.Search("shared")

	if diff := cmp.Diff(first.Hits(), second.Hits()); diff != "" {
		t.Errorf("results changed without catalog change (-want +got):\n%s", diff)
	}
	if first.Generation() != second.Generation() {
		t.Errorf("generation changed without catalog change")
	}

	src.set([]model.Manga{{ID: 1, Name: "One", Description: "shared"}}, nil)
	mustRefresh(t, idx)
	if idx.Generation() == first.Generation() {
		t.Error("expected a new generation after a catalog change")
	}
	if diff := cmp.Diff(1, idx.Stats().Documents); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchSkipsDeletedManga(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := createManga(t, s, "Vanishing", "")
	idx := New(s, testLogger())
	mustRefresh(t, idx)

	m.Status = model.MangaDeleted
	if err := s.UpdateManga(ctx, &m); err != nil {
		t.Fatalf("update: %v", err)
	}
	mustRefresh(t, idx)
	if got := idx.Search("vanish").Len(); got != 0 {
		t.Errorf("expected deleted manga to be excluded, got %d", got)
	}
}

func TestConcurrentRefreshAndSearch(t *testing.T) {
	src := &fakeSource{}
	idx := New(src, testLogger())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				n := (w*50 + i) % 10
				list := make([]model.Manga, n)
				for k := range list {
					list[k] = model.Manga{ID: int64(k + 1), Name: fmt.Sprintf("Series %d", k), Description: "common"}
				}
				src.set(list, nil)
				_ = idx.Refresh(context.Background())
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				res := idx.Search("common")
				// Every snapshot holds IDs 1..n named in the same order, so a
				// consistent read lists them in sequence.
				for k, m := range res.All() {
					if m.ID != int64(k+1) {
						t.Errorf("inconsistent snapshot: position %d holds %d", k, m.ID)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestSuggest(t *testing.T) {
	src := &fakeSource{manga: []model.Manga{
		{ID: 1, Name: "Berserk"},
		{ID: 2, Name: "Vagabond", AltNames: []model.AltName{{Name: "Bagabondo"}}},
		{ID: 3, Name: "Monster"},
	}}
	idx := New(src, testLogger())
	mustRefresh(t, idx)

	tests := []struct {
		term  string
		limit int
		want  []int64
	}{
		{term: "brsrk", limit: 5, want: []int64{1}},
		{term: "Berzerk", limit: 5, want: []int64{1}},
		{term: "bagabndo", limit: 5, want: []int64{2}},
		{term: "xyzzy", limit: 5, want: []int64{}},
		{term: "brsrk", limit: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			var got []int64
			for _, m := range idx.Suggest(tt.term, tt.limit) {
				got = append(got, m.ID)
			}
			if len(tt.want) == 0 && len(got) == 0 {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Suggest(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}

func TestSearchTermIsMatchedVerbatim(t *testing.T) {
	src := &fakeSource{manga: []model.Manga{
		{ID: 1, Name: "Two Words"},
		{ID: 2, Name: "Oneword"},
	}}
	idx := New(src, testLogger())
	mustRefresh(t, idx)

	tests := []struct {
		name string
		term string
		want []int64
	}{
		{name: "single space", term: " ", want: []int64{1}},
		{name: "empty", term: ""},
		{name: "full-width folds to ascii", term: "ｗｏｒｄｓ", want: []int64{1}},
		{name: "full-width without space", term: "ｗｏｒｄ", want: []int64{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Search(tt.term).IDs()
			if len(tt.want) == 0 && len(got) == 0 {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.term, diff)
			}
		})
	}
}
