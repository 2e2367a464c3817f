// Package search provides the ranked full-text index over the manga catalog.
//
// # Usage
//
// The primary type is [Index]. It is built from a [Source], normally the
// storage layer, and only changes when [Index.Refresh] is called:
//
//	idx := search.New(store, logger)
//	if err := idx.Refresh(ctx); err != nil {
//	    // the previous snapshot is still served
//	}
//	page := idx.Search("berserk").Slice(0, 20)
//
// # Consistency
//
// Searches read the snapshot published by the last successful refresh.
// Catalog writes made after that are invisible until the next refresh. A
// refresh whose catalog content is unchanged keeps the current snapshot and
// its generation, so paginating callers see no change.
//
// # Thread Safety
//
// Index is safe for concurrent use. Refreshes are serialized; searches never
// block on a refresh and never see a partially built snapshot.
//
// # Behavior
//
// Matching is a case-insensitive substring test over the name, alt names and
// description of every manga that is not deleted. Results are ordered by
// score descending, then name ascending, then ID ascending (see package
// ranking). Blank or unmatched terms yield an empty [Result].
package search
