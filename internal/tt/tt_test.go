package tt

import (
	"testing"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

func TestExactNotOverwrittenByShallower(t *testing.T) {
	table := NewTable(0)
	table.Store(Entry{Key: 1, Depth: 6, Score: 40, Flag: Exact, BestMove: 3})
	for _, flag := range []Flag{Exact, Lower, Upper} {
		if table.Store(Entry{Key: 1, Depth: 5, Score: -10, Flag: flag, BestMove: 2}) {
			t.Fatalf("depth 5 %s record replaced a depth 6 exact record", flag)
		}
	}
	got, ok := table.Probe(1)
	if !ok || got.Depth != 6 || got.Score != 40 || got.BestMove != 3 {
		t.Fatalf("unexpected entry after rejected stores: %+v", got)
	}
}

func TestReplacementRule(t *testing.T) {
	cases := []struct {
		name     string
		existing Entry
		incoming Entry
		want     bool
	}{
		{"deeper replaces", Entry{Depth: 3, Flag: Exact}, Entry{Depth: 4, Flag: Upper}, true},
		{"exact beats bound at equal depth", Entry{Depth: 3, Flag: Lower}, Entry{Depth: 3, Flag: Exact}, true},
		{"bound does not beat exact", Entry{Depth: 3, Flag: Exact}, Entry{Depth: 3, Flag: Lower}, false},
		{"same flag refreshes", Entry{Depth: 3, Flag: Upper}, Entry{Depth: 3, Flag: Upper}, true},
		{"different bounds at equal depth", Entry{Depth: 3, Flag: Upper}, Entry{Depth: 3, Flag: Lower}, false},
		{"shallower never replaces", Entry{Depth: 3, Flag: Upper}, Entry{Depth: 2, Flag: Exact}, false},
		{"proven survives deeper heuristic", Entry{Depth: 3, Flag: Exact, Proven: true}, Entry{Depth: 8, Flag: Exact}, false},
		{"proven replaced by deeper proven", Entry{Depth: 3, Flag: Exact, Proven: true}, Entry{Depth: 8, Flag: Exact, Proven: true}, true},
	}
	for _, tc := range cases {
		if got := shouldReplace(tc.existing, tc.incoming); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestStoreKeepsBestMoveWhenIncomingHasNone(t *testing.T) {
	table := NewTable(0)
	table.Store(Entry{Key: 9, Depth: 2, Flag: Lower, BestMove: 4})
	table.Store(Entry{Key: 9, Depth: 3, Flag: Upper, BestMove: NoMove})
	got, _ := table.Probe(9)
	if got.Depth != 3 || got.BestMove != 4 {
		t.Fatalf("expected depth 3 with best move 4, got %+v", got)
	}
}

func TestCapacityEvictsLeastRecentlyStored(t *testing.T) {
	table := NewTable(3)
	for k := zobrist.Key(1); k <= 3; k++ {
		table.Store(Entry{Key: k, Depth: 1, Flag: Exact})
	}
	// refreshing key 1 makes key 2 the oldest
	table.Store(Entry{Key: 1, Depth: 2, Flag: Exact})
	table.Store(Entry{Key: 4, Depth: 1, Flag: Exact})
	if table.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", table.Len())
	}
	if _, ok := table.Probe(2); ok {
		t.Fatalf("expected key 2 to be evicted")
	}
	for _, k := range []zobrist.Key{1, 3, 4} {
		if _, ok := table.Probe(k); !ok {
			t.Fatalf("expected key %d to survive", k)
		}
	}
}

func TestEntriesSortedAndClear(t *testing.T) {
	table := NewTable(0)
	for _, k := range []zobrist.Key{42, 7, 19} {
		table.Store(Entry{Key: k, Depth: 1, Flag: Exact})
	}
	entries := table.Entries()
	if len(entries) != 3 || entries[0].Key != 7 || entries[1].Key != 19 || entries[2].Key != 42 {
		t.Fatalf("unexpected snapshot order: %+v", entries)
	}
	table.Clear()
	if table.Len() != 0 {
		t.Fatalf("expected empty table after Clear")
	}
}

func TestWinScoreRoundTrip(t *testing.T) {
	score := WinScore - 9
	stored := ToTT(score, 4)
	if stored != WinScore-5 {
		t.Fatalf("expected node-relative score %d, got %d", WinScore-5, stored)
	}
	if got := FromTT(stored, 6); got != WinScore-11 {
		t.Fatalf("expected %d when read back two plies deeper, got %d", WinScore-11, got)
	}
	if ToTT(-score, 4) != -(WinScore - 5) {
		t.Fatalf("loss scores must adjust symmetrically")
	}
	if ToTT(250, 4) != 250 || FromTT(250, 4) != 250 {
		t.Fatalf("heuristic scores must pass through unchanged")
	}
	if !IsWinScore(score) || IsWinScore(100_000) {
		t.Fatalf("IsWinScore misclassified")
	}
}
