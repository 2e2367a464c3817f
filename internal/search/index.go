package search

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kmanga/internal/model"
	"kmanga/internal/ranking"
)

// Source provides the catalog the index is built from.
type Source interface {
	ListManga(ctx context.Context) ([]model.Manga, error)
}

// RebuildError reports a refresh that was abandoned. The previous snapshot
// remains in service.
type RebuildError struct {
	Err error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("rebuild search index: %v", e.Err)
}

func (e *RebuildError) Unwrap() error {
	return e.Err
}

// Stats describes the snapshot currently served.
type Stats struct {
	Documents  int
	Generation uuid.UUID
	BuiltAt    time.Time
}

// Index is a point-in-time ranked index over the catalog.
type Index struct {
	source Source
	log    *slog.Logger
	now    func() time.Time

	mu      sync.Mutex // serializes Refresh
	current atomic.Pointer[snapshot]
}

// snapshot is immutable once published.
type snapshot struct {
	docs        []ranking.Document
	manga       []model.Manga // parallel to docs
	generation  uuid.UUID
	builtAt     time.Time
	fingerprint string
}

// New creates an empty index. Searches return nothing until the first
// successful Refresh.
func New(source Source, log *slog.Logger) *Index {
	return &Index{source: source, log: log, now: time.Now}
}

// Refresh rebuilds the index from the source and swaps it in atomically.
// On failure the previous snapshot is kept and a *RebuildError is returned.
func (idx *Index) Refresh(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := idx.now()
	list, err := idx.source.ListManga(ctx)
	if err != nil {
		idx.log.Error("search index refresh failed", "error", err)
		return &RebuildError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &RebuildError{Err: err}
	}

	next := build(list)
	if prev := idx.current.Load(); prev != nil && prev.fingerprint == next.fingerprint {
		idx.log.Debug("search index unchanged", "documents", len(prev.docs), "generation", prev.generation)
		return nil
	}
	next.generation = uuid.New()
	next.builtAt = start
	idx.current.Store(next)

	idx.log.Info("search index refreshed",
		"documents", len(next.docs),
		"generation", next.generation,
		"took", idx.now().Sub(start),
	)
	return nil
}

func build(list []model.Manga) *snapshot {
	s := &snapshot{}
	for _, m := range list {
		if m.Status == model.MangaDeleted {
			continue
		}
		s.docs = append(s.docs, ranking.NewDocument(m.ID, m.Name, m.AltNameStrings(), m.Description))
		s.manga = append(s.manga, m)
	}
	s.fingerprint = fingerprint(s.manga)
	return s
}

// fingerprint hashes everything that affects matching or results.
func fingerprint(list []model.Manga) string {
	h := sha256.New()
	var id [8]byte
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	for _, m := range list {
		binary.BigEndian.PutUint64(id[:], uint64(m.ID))
		h.Write(id[:])
		write(m.Name)
		write(m.Description)
		write(string(m.Status))
		write(m.URL)
		for _, alt := range m.AltNames {
			write(alt.Name)
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Search ranks the current snapshot against term.
func (idx *Index) Search(term string) Result {
	snap := idx.current.Load()
	if snap == nil {
		return Result{}
	}

	folded := ranking.Fold(term)
	var hits []Hit
	for i, doc := range snap.docs {
		score, ok := ranking.ScoreFolded(doc, folded)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Manga: snap.manga[i], Score: score})
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		return ranking.Compare(a.rank(), b.rank())
	})

	return Result{hits: hits, generation: snap.generation}
}

// Generation identifies the snapshot currently served. It is the zero UUID
// before the first refresh.
func (idx *Index) Generation() uuid.UUID {
	if snap := idx.current.Load(); snap != nil {
		return snap.generation
	}
	return uuid.Nil
}

// Stats reports on the snapshot currently served.
func (idx *Index) Stats() Stats {
	snap := idx.current.Load()
	if snap == nil {
		return Stats{}
	}
	return Stats{
		Documents:  len(snap.docs),
		Generation: snap.generation,
		BuiltAt:    snap.builtAt,
	}
}
