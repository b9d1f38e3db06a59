package zobrist

import (
	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
)

// Key identifies a position: grid contents plus side to move.
type Key uint64

// DefaultSeed keeps keys stable across processes so persisted databases
// remain readable by later runs.
const DefaultSeed uint64 = 0x9e3779b97f4a7c15

type Table struct {
	cells [2][board.Width][board.Height]Key
	side  Key
}

var Default = New(DefaultSeed)

func New(seed uint64) *Table {
	rng := splitmix64{state: seed}
	t := &Table{}
	for p := range t.cells {
		for col := range t.cells[p] {
			for row := range t.cells[p][col] {
				t.cells[p][col][row] = Key(rng.next())
			}
		}
	}
	t.side = Key(rng.next())
	return t
}

func (t *Table) stone(col, row int, p board.Player) Key {
	return t.cells[p-1][col][row]
}

// Compute hashes the board from scratch.
func (t *Table) Compute(b *board.Board) Key {
	return t.Pair(b).Key
}

// Pair hashes the board and its mirror image in one pass.
func (t *Table) Pair(b *board.Board) Pair {
	var pair Pair
	for col := 0; col < board.Width; col++ {
		for row := 0; row < b.Height(col); row++ {
			p := b.At(col, row)
			pair.Key ^= t.stone(col, row, p)
			pair.Mirror ^= t.stone(board.Width-1-col, row, p)
		}
	}
	if b.ToMove() == board.PlayerTwo {
		pair.Key ^= t.side
		pair.Mirror ^= t.side
	}
	pair.table = t
	return pair
}

// Update applies (or, being an XOR, reverts) player p dropping a disc at
// (col,row) followed by the turn passing to the opponent.
func (t *Table) Update(k Key, col, row int, p board.Player) Key {
	return k ^ t.stone(col, row, p) ^ t.side
}

// Pair carries the key of a position together with the key of its
// left-right reflection so both can be updated incrementally.
type Pair struct {
	Key    Key
	Mirror Key
	table  *Table
}

func (p Pair) Update(col, row int, player board.Player) Pair {
	t := p.table
	if t == nil {
		t = Default
	}
	return Pair{
		Key:    t.Update(p.Key, col, row, player),
		Mirror: t.Update(p.Mirror, MirrorColumn(col), row, player),
		table:  t,
	}
}

// Canonical returns the smaller of the two orientation keys. mirrored is
// true when the reflection was chosen, in which case columns recorded
// against the canonical key must be passed through MirrorColumn.
func (p Pair) Canonical() (key Key, mirrored bool) {
	if p.Mirror < p.Key {
		return p.Mirror, true
	}
	return p.Key, false
}

func MirrorColumn(col int) int {
	if col < 0 {
		return col
	}
	return board.Width - 1 - col
}

func Compute(b *board.Board) Key {
	return Default.Compute(b)
}

// Canonical hashes b with the default table and reduces it by symmetry.
func Canonical(b *board.Board) (Key, bool) {
	return Default.Pair(b).Canonical()
}

type splitmix64 struct {
	state uint64
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
