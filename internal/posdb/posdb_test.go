package posdb

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

func sampleBatch() DB {
	return DB{
		1: {Move: 3, Depth: 4, Score: 10},
		2: {Move: 2, Depth: 6, Score: -5},
		3: {Move: 0, Depth: 1, Score: 0},
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	db := DB{2: {Move: 5, Depth: 2}}
	Merge(db, sampleBatch())
	once := db.Clone()
	added, updated := Merge(db, sampleBatch())
	if added != 0 || updated != 0 {
		t.Fatalf("second merge changed %d/%d entries", added, updated)
	}
	if !reflect.DeepEqual(db, once) {
		t.Fatalf("merging twice differs from merging once:\n%v\n%v", db, once)
	}
}

func TestMergeIsMonotonic(t *testing.T) {
	db := DB{7: {Move: 4, Depth: 9, Score: 1}}
	Merge(db, DB{7: {Move: 1, Depth: 3, Score: 50}})
	if got := db[7]; got.Move != 4 || got.Depth != 9 {
		t.Fatalf("shallower batch changed the stored move: %+v", got)
	}
	added, updated := Merge(db, DB{7: {Move: 2, Depth: 10}})
	if added != 0 || updated != 1 || db[7].Move != 2 {
		t.Fatalf("deeper batch should replace: %d/%d %+v", added, updated, db[7])
	}
	_, updated = Merge(db, DB{7: {Move: 6, Depth: 10}})
	if updated != 0 || db[7].Move != 2 {
		t.Fatalf("equal depth and score should keep the lower column: %+v", db[7])
	}
	_, updated = Merge(db, DB{7: {Move: 6, Depth: 10, Score: 3}})
	if updated != 1 || db[7].Move != 6 {
		t.Fatalf("equal depth with a higher score should overwrite: %+v", db[7])
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	a := DB{1: {Move: 4, Depth: 8, Score: 2}, 2: {Move: 5, Depth: 3}, 3: {Move: 1, Depth: 6}}
	b := DB{1: {Move: 2, Depth: 8, Score: 2}, 2: {Move: 0, Depth: 3, Score: 7}, 3: {Move: 6, Depth: 5}}
	ab, ba := New(), New()
	Merge(ab, a)
	Merge(ab, b)
	Merge(ba, b)
	Merge(ba, a)
	if !reflect.DeepEqual(ab, ba) {
		t.Fatalf("merge order changed the result:\n%v\n%v", ab, ba)
	}
	if ab[1].Move != 2 || ab[2].Move != 0 || ab[3].Move != 1 {
		t.Fatalf("unexpected tie-breaks %v", ab)
	}
}

func TestUnionLeavesInputsAlone(t *testing.T) {
	a := DB{1: {Move: 1, Depth: 1}}
	b := DB{1: {Move: 2, Depth: 2}, 5: {Move: 0, Depth: 1}}
	out := Union(a, b)
	if len(out) != 2 || out[1].Move != 2 {
		t.Fatalf("unexpected union %v", out)
	}
	if a[1].Move != 1 || len(a) != 1 {
		t.Fatalf("union mutated its input")
	}
}

func TestLookupReflectsMirroredMoves(t *testing.T) {
	b, err := board.FromMoves("001")
	if err != nil {
		t.Fatalf("FromMoves: %v", err)
	}
	key, mirrored := zobrist.Canonical(b)
	stored := int8(1)
	if mirrored {
		stored = int8(zobrist.MirrorColumn(1))
	}
	db := DB{key: {Move: stored, Depth: 5}}
	got, ok := db.Lookup(b)
	if !ok || got.Move != 1 {
		t.Fatalf("expected move 1 in b's orientation, got %+v %v", got, ok)
	}
	reflected, _ := board.FromMoves("665")
	m, ok := db.Lookup(reflected)
	if !ok || m.Move != 5 {
		t.Fatalf("expected mirrored move 5, got %+v %v", m, ok)
	}
	if col, ok := db.BestMove(b); !ok || col != 1 {
		t.Fatalf("expected BestMove 1, got %d %v", col, ok)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "positions.c4db")
	db := sampleBatch()
	if err := Save(path, db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, db) {
		t.Fatalf("round trip mismatch:\n%v\n%v", loaded, db)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.c4db")
	if err := Save(path, New()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil || len(loaded) != 0 {
		t.Fatalf("expected empty database, got %d entries, err %v", len(loaded), err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	db, err := Load(filepath.Join(t.TempDir(), "missing.c4db"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if db == nil || len(db) != 0 {
		t.Fatalf("expected an empty usable database")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.c4db")
	if err := os.WriteFile(garbage, []byte("not a database"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	truncated := filepath.Join(dir, "truncated.c4db")
	if err := os.WriteFile(truncated, append([]byte("C4DB"), formatVersion, 0x28, 0xb5), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, path := range []string{garbage, truncated} {
		db, err := Load(path)
		if !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", path, err)
		}
		if db == nil || len(db) != 0 {
			t.Fatalf("%s: expected an empty database alongside the error", path)
		}
		db[1] = Entry{Move: 3}
	}
}

func TestStats(t *testing.T) {
	st := sampleBatch().Stats()
	if st.Positions != 3 || st.MinDepth != 1 || st.MaxDepth != 6 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if !reflect.DeepEqual(st.Depths(), []int{1, 4, 6}) {
		t.Fatalf("unexpected depth keys %v", st.Depths())
	}
	if st.ByMove[3] != 1 || st.ByMove[2] != 1 || st.ByMove[0] != 1 {
		t.Fatalf("unexpected move histogram %v", st.ByMove)
	}
}
