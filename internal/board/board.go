package board

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	Width    = 7
	Height   = 6
	MaxMoves = Width * Height

	// each column uses Height+1 bits so shifted alignments never wrap into
	// the next column
	colBits = Height + 1
)

type Player int8

const (
	None Player = iota
	PlayerOne
	PlayerTwo
)

var ErrInvalidMove = errors.New("invalid move")

// CenterOrder lists columns from the center outwards.
var CenterOrder = [Width]int{3, 2, 4, 1, 5, 0, 6}

func (p Player) Other() Player {
	switch p {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	default:
		return None
	}
}

func (p Player) String() string {
	switch p {
	case PlayerOne:
		return "X"
	case PlayerTwo:
		return "O"
	default:
		return "."
	}
}

// Board is a 7x6 Connect-4 grid stored as one bitboard per player.
type Board struct {
	stones  [2]uint64
	heights [Width]int8
	moves   int
	toMove  Player
	history []int8
}

func New() *Board {
	return &Board{toMove: PlayerOne, history: make([]int8, 0, MaxMoves)}
}

// FromMoves replays a string of column digits ("3344") from the empty board.
func FromMoves(moves string) (*Board, error) {
	b := New()
	for i, r := range strings.TrimSpace(moves) {
		if r < '0' || r > '0'+Width-1 {
			return nil, errors.Wrapf(ErrInvalidMove, "position %d: %q is not a column", i, r)
		}
		if err := b.Play(int(r - '0')); err != nil {
			return nil, errors.Wrapf(err, "position %d", i)
		}
	}
	return b, nil
}

func (b *Board) Clone() *Board {
	clone := *b
	clone.history = make([]int8, len(b.history), MaxMoves)
	copy(clone.history, b.history)
	return &clone
}

func (b *Board) ToMove() Player {
	return b.toMove
}

// SetToMove overrides the side to move.
func (b *Board) SetToMove(p Player) {
	if p == PlayerOne || p == PlayerTwo {
		b.toMove = p
	}
}

func (b *Board) Moves() int {
	return b.moves
}

func (b *Board) Empty() int {
	return MaxMoves - b.moves
}

// Height returns the number of discs in col, which is also the row the next
// disc will land on.
func (b *Board) Height(col int) int {
	return int(b.heights[col])
}

func (b *Board) CanPlay(col int) bool {
	return col >= 0 && col < Width && b.heights[col] < Height
}

// ValidMoves returns the legal columns in ascending order.
func (b *Board) ValidMoves() []int {
	out := make([]int, 0, Width)
	for col := 0; col < Width; col++ {
		if b.CanPlay(col) {
			out = append(out, col)
		}
	}
	return out
}

// MakeMove drops a disc for player p into col. It reports false when the
// column is full or out of range.
func (b *Board) MakeMove(col int, p Player) bool {
	if !b.CanPlay(col) || (p != PlayerOne && p != PlayerTwo) {
		return false
	}
	b.stones[p-1] |= cellBit(col, int(b.heights[col]))
	b.heights[col]++
	b.moves++
	b.history = append(b.history, int8(col))
	b.toMove = p.Other()
	return true
}

// Play drops a disc for the side to move.
func (b *Board) Play(col int) error {
	if !b.MakeMove(col, b.toMove) {
		return errors.Wrapf(ErrInvalidMove, "column %d", col)
	}
	return nil
}

// Undo takes back the last disc and returns its column.
func (b *Board) Undo() (int, bool) {
	if len(b.history) == 0 {
		return -1, false
	}
	col := int(b.history[len(b.history)-1])
	b.history = b.history[:len(b.history)-1]
	b.heights[col]--
	bit := cellBit(col, int(b.heights[col]))
	owner := PlayerOne
	if b.stones[1]&bit != 0 {
		owner = PlayerTwo
	}
	b.stones[owner-1] &^= bit
	b.moves--
	b.toMove = owner
	return col, true
}

// History returns the played columns as a digit string.
func (b *Board) History() string {
	var sb strings.Builder
	for _, col := range b.history {
		sb.WriteByte(byte('0' + col))
	}
	return sb.String()
}

func (b *Board) At(col, row int) Player {
	bit := cellBit(col, row)
	switch {
	case b.stones[0]&bit != 0:
		return PlayerOne
	case b.stones[1]&bit != 0:
		return PlayerTwo
	default:
		return None
	}
}

// Stones returns the bitboard of p's discs, one bit per cell at col*7+row.
func (b *Board) Stones(p Player) uint64 {
	if p != PlayerOne && p != PlayerTwo {
		return 0
	}
	return b.stones[p-1]
}

// Bit returns the bitboard mask of a single cell.
func Bit(col, row int) uint64 {
	return cellBit(col, row)
}

func (b *Board) CheckWin(p Player) bool {
	if p != PlayerOne && p != PlayerTwo {
		return false
	}
	return aligned(b.stones[p-1])
}

// IsWinningMove reports whether p playing col completes four in a row.
func (b *Board) IsWinningMove(col int, p Player) bool {
	if !b.CanPlay(col) || (p != PlayerOne && p != PlayerTwo) {
		return false
	}
	return aligned(b.stones[p-1] | cellBit(col, int(b.heights[col])))
}

func (b *Board) IsFull() bool {
	return b.moves >= MaxMoves
}

func (b *Board) Winner() Player {
	if b.CheckWin(PlayerOne) {
		return PlayerOne
	}
	if b.CheckWin(PlayerTwo) {
		return PlayerTwo
	}
	return None
}

// GameOver reports a win for either side or a full board.
func (b *Board) GameOver() bool {
	return b.IsFull() || b.Winner() != None
}

func (b *Board) String() string {
	var sb strings.Builder
	for row := Height - 1; row >= 0; row-- {
		sb.WriteString("|")
		for col := 0; col < Width; col++ {
			sb.WriteString(" ")
			sb.WriteString(b.At(col, row).String())
		}
		sb.WriteString(" |\n")
	}
	sb.WriteString("|---------------|\n")
	sb.WriteString(fmt.Sprintf("  0 1 2 3 4 5 6   %s to move", b.toMove))
	return sb.String()
}

func cellBit(col, row int) uint64 {
	return uint64(1) << uint(col*colBits+row)
}

func aligned(s uint64) bool {
	for _, shift := range [4]uint{1, colBits, colBits - 1, colBits + 1} {
		m := s & (s >> shift)
		if m&(m>>(2*shift)) != 0 {
			return true
		}
	}
	return false
}
