package board

import (
	"errors"
	"testing"
)

func TestPlayAlternatesAndStacks(t *testing.T) {
	b := New()
	if b.ToMove() != PlayerOne {
		t.Fatalf("expected player one to start")
	}
	for i := 0; i < 3; i++ {
		if err := b.Play(3); err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
	}
	if b.Height(3) != 3 {
		t.Fatalf("expected height 3, got %d", b.Height(3))
	}
	if b.At(3, 0) != PlayerOne || b.At(3, 1) != PlayerTwo || b.At(3, 2) != PlayerOne {
		t.Fatalf("unexpected column contents:\n%s", b)
	}
	if b.ToMove() != PlayerTwo {
		t.Fatalf("expected player two to move, got %v", b.ToMove())
	}
}

func TestFullColumnIsRejected(t *testing.T) {
	b, err := FromMoves("000000")
	if err != nil {
		t.Fatalf("FromMoves: %v", err)
	}
	if b.CanPlay(0) {
		t.Fatalf("expected column 0 to be full")
	}
	if err := b.Play(0); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
	if err := b.Play(7); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove for out of range column, got %v", err)
	}
	for _, col := range b.ValidMoves() {
		if col == 0 {
			t.Fatalf("full column offered as legal move")
		}
	}
}

func TestFromMovesRejectsGarbage(t *testing.T) {
	if _, err := FromMoves("33a"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
}

func TestCheckWinDirections(t *testing.T) {
	cases := map[string]struct {
		moves  string
		winner Player
	}{
		"horizontal": {"0011223", PlayerOne},
		"vertical":   {"0101010", PlayerOne},
		"diagonal":   {"01123223633", PlayerOne},
		"anti-diag":  {"65543443033", PlayerOne},
		"none":       {"0123456", None},
	}
	for name, tc := range cases {
		b, err := FromMoves(tc.moves)
		if err != nil {
			t.Fatalf("%s: FromMoves: %v", name, err)
		}
		if got := b.Winner(); got != tc.winner {
			t.Fatalf("%s: expected winner %v, got %v\n%s", name, tc.winner, got, b)
		}
	}
}

func TestNoWrapAcrossColumns(t *testing.T) {
	// three discs on top of column 0 plus one at the bottom of column 1 are
	// adjacent bits only if columns wrap
	b := New()
	for i := 0; i < 3; i++ {
		b.MakeMove(0, PlayerTwo)
	}
	for i := 0; i < 3; i++ {
		b.MakeMove(0, PlayerOne)
	}
	b.MakeMove(1, PlayerOne)
	if b.CheckWin(PlayerOne) {
		t.Fatalf("vertical alignment wrapped into the next column:\n%s", b)
	}
}

func TestUndoRestoresState(t *testing.T) {
	b, _ := FromMoves("3343")
	before := b.Clone()
	if err := b.Play(2); err != nil {
		t.Fatalf("play: %v", err)
	}
	col, ok := b.Undo()
	if !ok || col != 2 {
		t.Fatalf("expected to undo column 2, got %d %v", col, ok)
	}
	if b.String() != before.String() || b.ToMove() != before.ToMove() || b.Moves() != before.Moves() {
		t.Fatalf("undo mismatch:\n%s\nvs\n%s", b, before)
	}
}

func TestIsWinningMoveDoesNotMutate(t *testing.T) {
	b, _ := FromMoves("334455")
	if !b.IsWinningMove(6, PlayerOne) && !b.IsWinningMove(2, PlayerOne) {
		t.Fatalf("expected a winning column for player one:\n%s", b)
	}
	if b.Moves() != 6 {
		t.Fatalf("IsWinningMove mutated the board")
	}
}

func TestFullBoard(t *testing.T) {
	b := New()
	// column pairs filled in a pattern that never connects four
	order := []int{0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0,
		2, 3, 2, 3, 2, 3, 3, 2, 3, 2, 3, 2,
		4, 5, 4, 5, 4, 5, 5, 4, 5, 4, 5, 4,
		6, 6, 6, 6, 6, 6}
	for i, col := range order {
		if err := b.Play(col); err != nil {
			t.Fatalf("move %d col %d: %v\n%s", i, col, err, b)
		}
	}
	if !b.IsFull() {
		t.Fatalf("expected full board")
	}
	if len(b.ValidMoves()) != 0 {
		t.Fatalf("expected no legal moves on a full board")
	}
}
