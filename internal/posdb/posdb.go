package posdb

import (
	"sort"

	"github.com/samber/lo"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

// Entry is the recommended column for a canonical position and the depth of
// the search that produced it.
type Entry struct {
	Move  int8
	Depth int
	Score int32
}

// DB maps canonical position keys to entries. Moves are stored in the
// orientation of the canonical key.
type DB map[zobrist.Key]Entry

func New() DB {
	return make(DB)
}

// SortedKeys returns the keys in ascending order.
func (db DB) SortedKeys() []zobrist.Key {
	keys := lo.Keys(db)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// MergeEntry stores e under key unless the existing entry is deeper. At
// equal depth the higher score wins, then the lower column, so the order in
// which batches are merged does not matter. It reports whether key was new
// and whether an existing entry changed.
func (db DB) MergeEntry(key zobrist.Key, e Entry) (added, updated bool) {
	cur, ok := db[key]
	if !ok {
		db[key] = e
		return true, false
	}
	if !outranks(e, cur) {
		return false, false
	}
	db[key] = e
	return false, true
}

func outranks(e, cur Entry) bool {
	if e.Depth != cur.Depth {
		return e.Depth > cur.Depth
	}
	if e.Score != cur.Score {
		return e.Score > cur.Score
	}
	return e.Move < cur.Move
}

// Merge folds src into dst by depth priority, visiting keys in order so the
// result does not depend on map iteration.
func Merge(dst, src DB) (added, updated int) {
	for _, key := range src.SortedKeys() {
		a, u := dst.MergeEntry(key, src[key])
		if a {
			added++
		}
		if u {
			updated++
		}
	}
	return added, updated
}

// Union returns a new database holding a merged with b.
func Union(a, b DB) DB {
	out := make(DB, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	Merge(out, b)
	return out
}

func (db DB) Clone() DB {
	return Union(db, nil)
}

// Lookup returns the entry for b with the move reflected into b's
// orientation.
func (db DB) Lookup(b *board.Board) (Entry, bool) {
	key, mirrored := zobrist.Canonical(b)
	e, ok := db[key]
	if !ok {
		return Entry{}, false
	}
	if mirrored {
		e.Move = int8(zobrist.MirrorColumn(int(e.Move)))
	}
	return e, true
}

// BestMove returns the stored column for b if it is playable.
func (db DB) BestMove(b *board.Board) (int, bool) {
	e, ok := db.Lookup(b)
	if !ok || !b.CanPlay(int(e.Move)) {
		return -1, false
	}
	return int(e.Move), true
}

type Stats struct {
	Positions int              `json:"positions"`
	MinDepth  int              `json:"min_depth"`
	MaxDepth  int              `json:"max_depth"`
	ByDepth   map[int]int      `json:"by_depth"`
	ByMove    [board.Width]int `json:"by_move"`
}

func (db DB) Stats() Stats {
	st := Stats{Positions: len(db), ByDepth: make(map[int]int)}
	first := true
	for _, e := range db {
		st.ByDepth[e.Depth]++
		if e.Move >= 0 && int(e.Move) < board.Width {
			st.ByMove[e.Move]++
		}
		if first || e.Depth < st.MinDepth {
			st.MinDepth = e.Depth
		}
		if first || e.Depth > st.MaxDepth {
			st.MaxDepth = e.Depth
		}
		first = false
	}
	return st
}

// Depths returns the histogram keys in ascending order.
func (s Stats) Depths() []int {
	depths := lo.Keys(s.ByDepth)
	sort.Ints(depths)
	return depths
}
