package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"kmanga/internal/model"
)

var ignoreMangaTS = cmpopts.IgnoreFields(model.Manga{}, "CreatedAt", "UpdatedAt")
var ignoreIssueTS = cmpopts.IgnoreFields(model.Issue{}, "CreatedAt", "UpdatedAt")

// stepClock advances one second on every call so rows get distinct timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := NewSQLite(":memory:", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustManga(t *testing.T, s *SQLite, name, description string, alts ...string) model.Manga {
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

func mustIssue(t *testing.T, s *SQLite, mangaID int64, name string) model.Issue {
	t.Helper()
	issue := model.Issue{MangaID: mangaID, Name: name}
	if err := s.CreateIssue(context.Background(), &issue); err != nil {
		t.Fatalf("create issue %q: %v", name, err)
	}
	return issue
}

func mustSubscribe(t *testing.T, s *SQLite, userID, mangaID int64) model.Subscription {
	t.Helper()
	sub, err := s.Subscribe(context.Background(), userID, mangaID)
	if err != nil {
		t.Fatalf("subscribe user %d to manga %d: %v", userID, mangaID, err)
	}
	return *sub
}

func TestMangaCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name  string
		manga model.Manga
		want  model.Manga
	}{
		{
			name:  "defaults to ongoing",
			manga: model.Manga{Name: "Manga 1", Description: "Description 1"},
			want:  model.Manga{Name: "Manga 1", Description: "Description 1", Status: model.MangaOngoing},
		},
		{
			name: "alt names keep order and drop duplicates",
			manga: model.Manga{
				Name:     "Manga 2",
				Status:   model.MangaCompleted,
				URL:      "https://example.com/manga2.xml",
				AltNames: []model.AltName{{Name: "Manga Two"}, {Name: "M2"}, {Name: "Manga Two"}},
			},
			want: model.Manga{
				Name:     "Manga 2",
				Status:   model.MangaCompleted,
				URL:      "https://example.com/manga2.xml",
				AltNames: []model.AltName{{Name: "Manga Two"}, {Name: "M2"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.manga
			if err := s.CreateManga(ctx, &m); err != nil {
				t.Fatalf("create: %v", err)
			}
			if m.ID == 0 {
				t.Fatal("expected non-zero ID")
			}

			got, err := s.GetManga(ctx, m.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}

			want := tt.want
			want.ID = m.ID
			for i := range want.AltNames {
				want.AltNames[i].ID = m.AltNames[i].ID
				want.AltNames[i].MangaID = m.ID
			}
			if diff := cmp.Diff(want, *got, ignoreMangaTS); diff != "" {
				t.Errorf("GetManga mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateMangaInvalidStatus(t *testing.T) {
	s := newTestDB(t)
	m := model.Manga{Name: "X", Status: "hiatus"}
	if err := s.CreateManga(context.Background(), &m); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestGetMangaNotFound(t *testing.T) {
	s := newTestDB(t)
	_, err := s.GetManga(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListManga(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m1 := mustManga(t, s, "Manga 1", "Description 1", "Manga One")
	m2 := mustManga(t, s, "Manga 2", "Description 2")
	m3 := mustManga(t, s, "Manga 3", "Description 3", "Manga Three", "M3")

	got, err := s.ListManga(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]model.Manga{m1, m2, m3}, got, ignoreMangaTS, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("ListManga mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateManga(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := mustManga(t, s, "Old", "Old description", "Alt")
	m.Name = "New"
	m.Description = "New description"
	m.Status = model.MangaCompleted
	m.URL = "https://example.com/feed"
	if err := s.UpdateManga(ctx, &m); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetManga(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(m, *got, ignoreMangaTS); diff != "" {
		t.Errorf("UpdateManga mismatch (-want +got):\n%s", diff)
	}

	missing := model.Manga{ID: 999, Name: "x", Status: model.MangaOngoing}
	if err := s.UpdateManga(ctx, &missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing manga, got %v", err)
	}
}

func TestAltNames(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := mustManga(t, s, "Manga 1", "")

	first, err := s.AddAltName(ctx, m.ID, "Manga One")
	if err != nil {
		t.Fatalf("add alt name: %v", err)
	}
	again, err := s.AddAltName(ctx, m.ID, "Manga One")
	if err != nil {
		t.Fatalf("add duplicate alt name: %v", err)
	}
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("duplicate alt name should return existing entry (-want +got):\n%s", diff)
	}
	if _, err := s.AddAltName(ctx, 999, "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing manga, got %v", err)
	}

	if err := s.RemoveAltName(ctx, first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := s.GetManga(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.AltNames) != 0 {
		t.Errorf("expected no alt names, got %v", got.AltNames)
	}
	if err := s.RemoveAltName(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestIssues(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := mustManga(t, s, "Manga 1", "")

	issue := model.Issue{MangaID: m.ID, Name: "manga 1 issue 1", Number: "1", URL: "https://example.com/1"}
	if err := s.CreateIssue(ctx, &issue); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(issue, *got, ignoreIssueTS); diff != "" {
		t.Errorf("GetIssue mismatch (-want +got):\n%s", diff)
	}

	if err := s.RenameIssue(ctx, issue.ID, "manga 1 issue 1 (fixed)"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, _ = s.GetIssue(ctx, issue.ID)
	if got.Name != "manga 1 issue 1 (fixed)" {
		t.Errorf("expected renamed issue, got %q", got.Name)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("expected UpdatedAt after CreatedAt, got %v <= %v", got.UpdatedAt, got.CreatedAt)
	}

	if err := s.RenameIssue(ctx, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound renaming missing issue, got %v", err)
	}
	if err := s.CreateIssue(ctx, &model.Issue{MangaID: 999, Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing manga, got %v", err)
	}
}

func TestEnsureIssue(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := mustManga(t, s, "Manga 1", "")

	first := model.Issue{MangaID: m.ID, Name: "Chapter 1", Number: "1", GUID: "guid-1"}
	created, err := s.EnsureIssue(ctx, &first)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created {
		t.Fatal("expected first ensure to create")
	}

	dup := model.Issue{MangaID: m.ID, Name: "Chapter 1 (repost)", GUID: "guid-1"}
	created, err = s.EnsureIssue(ctx, &dup)
	if err != nil {
		t.Fatalf("ensure duplicate: %v", err)
	}
	if created {
		t.Error("expected duplicate ensure not to create")
	}
	if diff := cmp.Diff(first, dup, ignoreIssueTS); diff != "" {
		t.Errorf("duplicate should be filled from stored row (-want +got):\n%s", diff)
	}

	// Issues without a GUID never collide.
	for i := 0; i < 2; i++ {
		manual := model.Issue{MangaID: m.ID, Name: "manual"}
		created, err := s.EnsureIssue(ctx, &manual)
		if err != nil || !created {
			t.Fatalf("ensure manual issue %d: created=%v err=%v", i, created, err)
		}
	}

	issues, err := s.ListIssues(ctx, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(issues) != 3 {
		t.Errorf("expected 3 issues, got %d", len(issues))
	}
}

func TestLatestManga(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	issues := make(map[string]model.Issue)
	for _, name := range []string{"Manga 1", "Manga 2", "Manga 3", "Manga 4"} {
		m := mustManga(t, s, name, "")
		issues[name] = mustIssue(t, s, m.ID, name+" issue 1")
	}
	gone := mustManga(t, s, "Gone", "")
	mustIssue(t, s, gone.ID, "gone issue")
	gone.Status = model.MangaDeleted
	if err := s.UpdateManga(ctx, &gone); err != nil {
		t.Fatalf("delete manga: %v", err)
	}
	mustManga(t, s, "No issues", "")

	// Touch issues in reverse so the expected order is the most recently touched first.
	want := []string{"Manga 2", "Manga 4", "Manga 1", "Manga 3"}
	for i := len(want) - 1; i >= 0; i-- {
		issue := issues[want[i]]
		if err := s.RenameIssue(ctx, issue.ID, issue.Name+" - "+want[i]); err != nil {
			t.Fatalf("rename: %v", err)
		}
	}
	want = append(want, "No issues")

	got, err := s.LatestManga(ctx, 10)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	var names []string
	for _, m := range got {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("LatestManga order mismatch (-want +got):\n%s", diff)
	}

	limited, err := s.LatestManga(ctx, 2)
	if err != nil {
		t.Fatalf("latest limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 manga, got %d", len(limited))
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
