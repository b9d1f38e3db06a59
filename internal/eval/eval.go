package eval

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
)

// Limit bounds every heuristic score so it stays well clear of search win
// scores.
const Limit int32 = 100_000

var ErrUnknownEvaluator = errors.New("unknown evaluator")

// Evaluator scores a non-terminal board from p's point of view. Positive
// values favour p.
type Evaluator interface {
	Evaluate(b *board.Board, p board.Player) int32
	Name() string
}

// Names lists the evaluators accepted by ByName.
var Names = []string{"old", "new"}

func ByName(name string) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "old":
		return Pattern{}, nil
	case "new", "":
		return Threat{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEvaluator, "%q", name)
	}
}

func clamp(score int32) int32 {
	if score > Limit {
		return Limit
	}
	if score < -Limit {
		return -Limit
	}
	return score
}

// terminal reports a decided board as the evaluator limit.
func terminal(b *board.Board, p board.Player) (int32, bool) {
	switch b.Winner() {
	case p:
		return Limit, true
	case p.Other():
		return -Limit, true
	}
	return 0, false
}
