package agent

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
)

type fixedBook map[string]int

func (f fixedBook) BestMove(b *board.Board) (int, bool) {
	col, ok := f[b.History()]
	return col, ok
}

func TestCompletesBottomRow(t *testing.T) {
	b := board.New()
	for _, col := range []int{3, 4, 5} {
		b.MakeMove(col, board.PlayerOne)
	}
	b.MakeMove(3, board.PlayerTwo)
	b.MakeMove(4, board.PlayerTwo)
	a := New(Options{Evaluator: eval.Pattern{}})
	col, err := a.ChooseMove(b, board.PlayerOne, 200)
	if err != nil {
		t.Fatalf("ChooseMove: %v", err)
	}
	if col != 2 && col != 6 {
		t.Fatalf("expected column 2 or 6, got %d", col)
	}
	b.MakeMove(col, board.PlayerOne)
	if !b.CheckWin(board.PlayerOne) {
		t.Fatalf("expected a win after column %d:\n%s", col, b)
	}
}

func TestFullBoardReportsNoLegalMove(t *testing.T) {
	b := board.New()
	order := []int{0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0,
		2, 3, 2, 3, 2, 3, 3, 2, 3, 2, 3, 2,
		4, 5, 4, 5, 4, 5, 5, 4, 5, 4, 5, 4,
		6, 6, 6, 6, 6, 6}
	for _, col := range order {
		if err := b.Play(col); err != nil {
			t.Fatalf("play %d: %v", col, err)
		}
	}
	_, err := New(Options{}).ChooseMove(b, board.PlayerOne, 50)
	if !errors.Is(err, ErrNoLegalMove) {
		t.Fatalf("expected ErrNoLegalMove, got %v", err)
	}
}

func TestAlwaysLegal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := New(Options{MaxDepth: 3, RetainTable: true})
	for game := 0; game < 10; game++ {
		a.Reset()
		b := board.New()
		for !b.GameOver() {
			for i := rng.Intn(3); i > 0 && !b.GameOver(); i-- {
				moves := b.ValidMoves()
				b.Play(moves[rng.Intn(len(moves))])
			}
			if b.GameOver() {
				break
			}
			col, err := a.ChooseMove(b, b.ToMove(), -1)
			if err != nil {
				t.Fatalf("game %d: %v", game, err)
			}
			if !b.CanPlay(col) {
				t.Fatalf("game %d: illegal column %d\n%s", game, col, b)
			}
			b.Play(col)
		}
	}
}

func TestZeroBudgetStillMoves(t *testing.T) {
	a := New(Options{})
	fixed := time.Unix(1_700_000_000, 0)
	a.Searcher().SetClock(func() time.Time { return fixed })
	b, _ := board.FromMoves("333333")
	col, err := a.ChooseMove(b, b.ToMove(), 0)
	if err != nil || !b.CanPlay(col) {
		t.Fatalf("expected a legal fallback, got %d %v", col, err)
	}
	if a.LastResult().Depth != 0 {
		t.Fatalf("expected no completed iteration")
	}
}

func TestBookMoveSkipsSearch(t *testing.T) {
	a := New(Options{Book: fixedBook{"33": 0}})
	b, _ := board.FromMoves("33")
	col, err := a.ChooseMove(b, b.ToMove(), -1)
	if err != nil || col != 0 {
		t.Fatalf("expected book move 0, got %d %v", col, err)
	}
	if a.Table().Len() != 0 {
		t.Fatalf("book move should not touch the table")
	}
}

func TestTableRetention(t *testing.T) {
	b, _ := board.FromMoves("3324")
	keep := New(Options{MaxDepth: 4, RetainTable: true})
	keep.ChooseMove(b, b.ToMove(), -1)
	size := keep.Table().Len()
	if size == 0 {
		t.Fatalf("expected a populated table")
	}
	b.Play(keep.LastResult().Move)
	keep.ChooseMove(b, b.ToMove(), -1)
	if keep.Table().Len() < size {
		t.Fatalf("retained table shrank from %d to %d", size, keep.Table().Len())
	}

	fresh := New(Options{MaxDepth: 2})
	fresh.ChooseMove(b, b.ToMove(), -1)
	first := fresh.Table().Len()
	fresh.ChooseMove(b, b.ToMove(), -1)
	if fresh.Table().Len() != first {
		t.Fatalf("expected table to be rebuilt from scratch, got %d then %d", first, fresh.Table().Len())
	}
}
