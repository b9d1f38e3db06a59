package agent

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/search"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/tt"
)

var ErrNoLegalMove = errors.New("no legal move")

const DefaultTimeBufferMs = 10

// Book supplies stored moves that are played without searching.
type Book interface {
	BestMove(b *board.Board) (int, bool)
}

type Options struct {
	Evaluator eval.Evaluator
	// MaxDepth caps iterative deepening; zero means no cap.
	MaxDepth int
	// RetainTable keeps the table between calls. Otherwise every call starts
	// from an empty table.
	RetainTable   bool
	TableCapacity int
	TimeBufferMs  int
	Book          Book
}

type Agent struct {
	mu       sync.Mutex
	opts     Options
	table    *tt.Table
	searcher *search.Searcher
	last     search.Result
}

func New(opts Options) *Agent {
	if opts.Evaluator == nil {
		opts.Evaluator = eval.Threat{}
	}
	if opts.TimeBufferMs < 0 {
		opts.TimeBufferMs = 0
	}
	table := tt.NewTable(opts.TableCapacity)
	return &Agent{
		opts:     opts,
		table:    table,
		searcher: search.New(table, opts.Evaluator),
	}
}

// Searcher exposes the underlying engine, mainly to swap its clock.
func (a *Agent) Searcher() *search.Searcher {
	return a.searcher
}

func (a *Agent) ChooseMove(b *board.Board, p board.Player, budgetMs int) (int, error) {
	return a.ChooseMoveContext(context.Background(), b, p, budgetMs)
}

// ChooseMoveContext returns a legal column for p. A negative budget means
// no deadline. b is not modified.
func (a *Agent) ChooseMoveContext(ctx context.Context, b *board.Board, p board.Player, budgetMs int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b.IsFull() {
		return -1, errors.Wrapf(ErrNoLegalMove, "board full after %d moves", b.Moves())
	}
	work := b.Clone()
	work.SetToMove(p)

	if a.opts.Book != nil {
		if col, ok := a.opts.Book.BestMove(work); ok && work.CanPlay(col) {
			a.last = search.Result{Move: col}
			log.Debug().Str("moves", b.History()).Int("move", col).Msg("book move")
			return col, nil
		}
	}
	if !a.opts.RetainTable {
		a.table.Clear()
	}

	limits := search.DefaultLimits().SetDepth(a.opts.MaxDepth).SetMovetime(a.movetime(budgetMs))
	res := a.searcher.Search(ctx, work, limits)
	if !work.CanPlay(res.Move) {
		res.Move = firstLegal(work)
	}
	a.last = res
	return res.Move, nil
}

func (a *Agent) movetime(budgetMs int) int {
	if budgetMs < 0 {
		return search.DefaultMovetimeLimit
	}
	ms := budgetMs - a.opts.TimeBufferMs
	if ms < budgetMs/2 {
		ms = budgetMs / 2
	}
	return ms
}

func firstLegal(b *board.Board) int {
	for _, col := range board.CenterOrder {
		if b.CanPlay(col) {
			return col
		}
	}
	return -1
}

// Table returns the agent's table for harvesting.
func (a *Agent) Table() *tt.Table {
	return a.table
}

// Reset discards everything learned so far, typically between games.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table.Clear()
	a.last = search.Result{}
}

func (a *Agent) LastResult() search.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
