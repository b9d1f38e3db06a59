package tt

import (
	"container/list"
	"sort"
	"sync"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

type Flag uint8

const (
	Exact Flag = iota
	Lower
	Upper
)

func (f Flag) String() string {
	switch f {
	case Exact:
		return "exact"
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	default:
		return "unknown"
	}
}

// NoMove marks an entry without a recommended column.
const NoMove int8 = -1

// Entry is one search record. Depth is the remaining depth searched below
// the node when it was stored. Proven is set when Score is the true game
// value rather than a heuristic estimate.
type Entry struct {
	Key      zobrist.Key
	Mirror   zobrist.Key
	Depth    int
	Score    int32
	Flag     Flag
	BestMove int8
	Proven   bool
	Stored   uint64
}

type slot struct {
	entry Entry
	elem  *list.Element
}

// Table maps position keys to search records. With a capacity above zero
// the least recently stored record is evicted when a new key needs room.
type Table struct {
	mu       sync.Mutex
	capacity int
	slots    map[zobrist.Key]*slot
	order    *list.List
	seq      uint64
}

func NewTable(capacity int) *Table {
	if capacity < 0 {
		capacity = 0
	}
	return &Table{
		capacity: capacity,
		slots:    make(map[zobrist.Key]*slot),
		order:    list.New(),
	}
}

func (t *Table) Probe(key zobrist.Key) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[key]
	if !ok {
		return Entry{}, false
	}
	return s.entry, true
}

// Store writes e under e.Key if the replacement rule allows it and reports
// whether the table changed.
func (t *Table) Store(e Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	e.Stored = t.seq
	if s, ok := t.slots[e.Key]; ok {
		if !shouldReplace(s.entry, e) {
			return false
		}
		if e.BestMove == NoMove {
			e.BestMove = s.entry.BestMove
		}
		s.entry = e
		t.order.MoveToBack(s.elem)
		return true
	}
	if t.capacity > 0 && len(t.slots) >= t.capacity {
		oldest := t.order.Front()
		if oldest != nil {
			delete(t.slots, oldest.Value.(zobrist.Key))
			t.order.Remove(oldest)
		}
	}
	t.slots[e.Key] = &slot{entry: e, elem: t.order.PushBack(e.Key)}
	return true
}

// replacementClass ranks why an incoming record may overwrite an existing
// one; zero means it may not.
func replacementClass(existing, incoming Entry) int {
	if existing.Flag == Exact && existing.Proven && !(incoming.Flag == Exact && incoming.Proven) {
		return 0
	}
	if incoming.Depth > existing.Depth {
		return 1
	}
	if incoming.Depth == existing.Depth && incoming.Flag == Exact && existing.Flag != Exact {
		return 2
	}
	if incoming.Depth == existing.Depth && incoming.Flag == existing.Flag {
		return 3
	}
	return 0
}

func shouldReplace(existing, incoming Entry) bool {
	return replacementClass(existing, incoming) != 0
}

// Entries returns a snapshot of every record ordered by key.
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.slots))
	for _, s := range t.slots {
		out = append(out, s.entry)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

func (t *Table) Capacity() int {
	if t == nil {
		return 0
	}
	return t.capacity
}

func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = make(map[zobrist.Key]*slot)
	t.order.Init()
	t.seq = 0
}

// WinScore is the score of a win at the root. A win found n plies deeper
// scores WinScore-n so quicker wins rank higher.
const WinScore int32 = 1_000_000

const winBand = WinScore - board.MaxMoves - 1

func IsWinScore(score int32) bool {
	return score >= winBand || score <= -winBand
}

// ToTT converts a win score relative to the root into one relative to the
// node at ply, so the stored value is valid wherever the node recurs.
func ToTT(score int32, ply int) int32 {
	if score >= winBand {
		return score + int32(ply)
	}
	if score <= -winBand {
		return score - int32(ply)
	}
	return score
}

func FromTT(score int32, ply int) int32 {
	if score >= winBand {
		return score - int32(ply)
	}
	if score <= -winBand {
		return score + int32(ply)
	}
	return score
}
