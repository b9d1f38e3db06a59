package search

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/tt"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

// Result describes the last fully completed iteration. Depth is zero when
// no iteration finished and Move is then a fallback column.
type Result struct {
	Move    int
	Score   int32
	Depth   int
	Nodes   uint64
	Elapsed time.Duration
	Stop    StopReason
	Solved  bool
}

// Searcher runs iterative-deepening alpha-beta over a table it owns. It is
// not safe for concurrent use.
type Searcher struct {
	table *tt.Table
	eval  eval.Evaluator
	keys  *zobrist.Table
	now   func() time.Time

	ctx         context.Context
	deadline    time.Time
	hasDeadline bool
	nodes       uint64
	stop        StopReason
}

func New(table *tt.Table, ev eval.Evaluator) *Searcher {
	if table == nil {
		table = tt.NewTable(0)
	}
	if ev == nil {
		ev = eval.Threat{}
	}
	return &Searcher{
		table: table,
		eval:  ev,
		keys:  zobrist.Default,
		now:   time.Now,
	}
}

// SetClock replaces the time source used for deadlines.
func (s *Searcher) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Searcher) Table() *tt.Table {
	return s.table
}

// Search picks a move for the side to move in b. b is left unchanged. A
// full or already decided board yields Move -1.
func (s *Searcher) Search(ctx context.Context, b *board.Board, limits Limits) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	start := s.now()
	s.ctx = ctx
	s.deadline, s.hasDeadline = limits.deadline(start)
	s.nodes = 0
	s.stop = StopNone

	res := Result{Move: -1}
	if b.GameOver() {
		return res
	}
	work := b.Clone()
	pair := s.keys.Pair(work)

	for depth := 1; ; depth++ {
		if limits.Depth > 0 && depth > limits.Depth {
			res.Stop |= StopDepth
			break
		}
		score, move, ok := s.negamax(work, pair, depth, 0, -tt.WinScore-1, tt.WinScore+1)
		if !ok {
			res.Stop |= s.stop
			break
		}
		res.Move, res.Score, res.Depth = move, score, depth
		log.Debug().
			Int("depth", depth).
			Int("move", move).
			Int32("score", score).
			Uint64("nodes", s.nodes).
			Dur("elapsed", s.now().Sub(start)).
			Msg("search iteration complete")
		if depth >= work.Empty() || tt.IsWinScore(score) {
			res.Solved = true
			res.Stop |= StopSolved
			break
		}
	}

	if res.Depth == 0 {
		res.Move = s.fallback(work, pair)
	}
	res.Nodes = s.nodes
	res.Elapsed = s.now().Sub(start)
	return res
}

func (s *Searcher) fallback(b *board.Board, pair zobrist.Pair) int {
	if e, ok := s.recall(pair); ok && b.CanPlay(int(e.BestMove)) {
		return int(e.BestMove)
	}
	for _, col := range board.CenterOrder {
		if b.CanPlay(col) {
			return col
		}
	}
	return -1
}

func (s *Searcher) expired() bool {
	select {
	case <-s.ctx.Done():
		s.stop = StopInterrupt
		return true
	default:
	}
	if s.hasDeadline && !s.now().Before(s.deadline) {
		s.stop = StopMovetime
		return true
	}
	return false
}

// negamax returns the score of b for the side to move and the column that
// achieves it. ok is false when the search was stopped, in which case
// nothing was stored for this node.
func (s *Searcher) negamax(b *board.Board, pair zobrist.Pair, depth, ply int, alpha, beta int32) (int32, int, bool) {
	if s.expired() {
		return 0, -1, false
	}
	s.nodes++
	mover := b.ToMove()

	if b.CheckWin(mover.Other()) {
		return -(tt.WinScore - int32(ply)), -1, true
	}
	if b.IsFull() {
		return 0, -1, true
	}

	ttMove := -1
	if e, ok := s.recall(pair); ok {
		ttMove = int(e.BestMove)
		if ply > 0 && e.Depth >= depth {
			score := tt.FromTT(e.Score, ply)
			switch e.Flag {
			case tt.Exact:
				return score, ttMove, true
			case tt.Lower:
				alpha = max(alpha, score)
			case tt.Upper:
				beta = min(beta, score)
			}
			if alpha >= beta {
				return score, ttMove, true
			}
		}
	}

	if depth == 0 {
		return s.eval.Evaluate(b, mover), -1, true
	}

	for _, col := range board.CenterOrder {
		if b.IsWinningMove(col, mover) {
			score := tt.WinScore - int32(ply+1)
			s.store(pair, b.Empty(), score, tt.Exact, col, true, ply)
			return score, col, true
		}
	}

	alphaOrig := alpha
	best := -tt.WinScore - 1
	bestMove := -1
	for _, col := range orderMoves(b, ttMove) {
		row := b.Height(col)
		b.MakeMove(col, mover)
		score, _, ok := s.negamax(b, pair.Update(col, row, mover), depth-1, ply+1, -beta, -alpha)
		b.Undo()
		if !ok {
			return 0, -1, false
		}
		score = -score
		if score > best {
			best, bestMove = score, col
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			break
		}
	}

	flag := tt.Exact
	switch {
	case best <= alphaOrig:
		flag = tt.Upper
	case best >= beta:
		flag = tt.Lower
	}
	proven := flag == tt.Exact && (depth >= b.Empty() || tt.IsWinScore(best))
	s.store(pair, depth, best, flag, bestMove, proven, ply)
	return best, bestMove, true
}

// recall looks the position up under its own key and then under its
// reflection. A hit on the reflection has its move mirrored back.
func (s *Searcher) recall(pair zobrist.Pair) (tt.Entry, bool) {
	if e, ok := s.table.Probe(pair.Key); ok {
		return e, true
	}
	if pair.Mirror == pair.Key {
		return tt.Entry{}, false
	}
	e, ok := s.table.Probe(pair.Mirror)
	if !ok {
		return tt.Entry{}, false
	}
	if e.BestMove != tt.NoMove {
		e.BestMove = int8(zobrist.MirrorColumn(int(e.BestMove)))
	}
	e.Key, e.Mirror = pair.Key, pair.Mirror
	return e, true
}

func (s *Searcher) store(pair zobrist.Pair, depth int, score int32, flag tt.Flag, move int, proven bool, ply int) {
	s.table.Store(tt.Entry{
		Key:      pair.Key,
		Mirror:   pair.Mirror,
		Depth:    depth,
		Score:    tt.ToTT(score, ply),
		Flag:     flag,
		BestMove: int8(move),
		Proven:   proven,
	})
}

// orderMoves puts the table move first and then the remaining legal columns
// from the center outwards.
func orderMoves(b *board.Board, first int) []int {
	out := make([]int, 0, board.Width)
	if b.CanPlay(first) {
		out = append(out, first)
	}
	for _, col := range board.CenterOrder {
		if col != first && b.CanPlay(col) {
			out = append(out, col)
		}
	}
	return out
}
