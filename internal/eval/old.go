package eval

import (
	"strings"
	"sync"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
)

const (
	threatScore = 250
	buildScore  = 50
	weakScore   = 5
)

// Pattern is the line-pattern evaluator. Each row, column and four-cell
// diagonal is rendered as a string where M is p, O the opponent, P an empty
// cell that can be played right now and '.' any other empty cell.
type Pattern struct{}

type cell struct{ col, row int }

type linePattern struct {
	patterns []string
	score    int32
}

// Each group counts at most once per line.
var oldPatterns = [...]linePattern{
	{patterns: []string{".MMM", "MMM.", "M.MM", "MM.M"}, score: threatScore},
	{patterns: []string{"PMM", "MMP"}, score: buildScore},
	{patterns: []string{".MM", "MM."}, score: weakScore},
}

var (
	linesOnce sync.Once
	lines     [][]cell
)

func evalLines() [][]cell {
	linesOnce.Do(func() {
		// rows
		for row := 0; row < board.Height; row++ {
			line := make([]cell, 0, board.Width)
			for col := 0; col < board.Width; col++ {
				line = append(line, cell{col, row})
			}
			lines = append(lines, line)
		}
		// columns
		for col := 0; col < board.Width; col++ {
			line := make([]cell, 0, board.Height)
			for row := 0; row < board.Height; row++ {
				line = append(line, cell{col, row})
			}
			lines = append(lines, line)
		}
		// four-cell diagonals (/) and (\)
		for row := 0; row+3 < board.Height; row++ {
			for col := 0; col+3 < board.Width; col++ {
				up := make([]cell, 4)
				down := make([]cell, 4)
				for k := 0; k < 4; k++ {
					up[k] = cell{col + k, row + k}
					down[k] = cell{col + 3 - k, row + k}
				}
				lines = append(lines, up, down)
			}
		}
	})
	return lines
}

func (Pattern) Name() string { return "old" }

func (Pattern) Evaluate(b *board.Board, p board.Player) int32 {
	if s, ok := terminal(b, p); ok {
		return s
	}
	var score int32
	var sb strings.Builder
	for _, line := range evalLines() {
		sb.Reset()
		for _, c := range line {
			sb.WriteByte(cellRune(b, c, p))
		}
		score += scoreLine(sb.String())
	}
	for col := 2; col <= 4; col++ {
		for row := 0; row < b.Height(col); row++ {
			if b.At(col, row) == p {
				score++
			} else {
				score--
			}
		}
	}
	return clamp(score)
}

func cellRune(b *board.Board, c cell, p board.Player) byte {
	switch b.At(c.col, c.row) {
	case p:
		return 'M'
	case board.None:
		if b.Height(c.col) == c.row {
			return 'P'
		}
		return '.'
	default:
		return 'O'
	}
}

// scoreLine scores a line for M and subtracts the same patterns for O. A
// playable gap also completes a three-disc threat; the two-disc groups keep
// playable and blocked gaps apart.
func scoreLine(line string) int32 {
	mine := line
	theirs := strings.Map(func(r rune) rune {
		switch r {
		case 'M':
			return 'O'
		case 'O':
			return 'M'
		}
		return r
	}, line)
	return matchGroups(mine) - matchGroups(theirs)
}

func matchGroups(line string) int32 {
	loose := strings.ReplaceAll(line, "P", ".")
	var score int32
	for _, group := range oldPatterns {
		target := line
		if group.score == threatScore {
			target = loose
		}
		for _, pat := range group.patterns {
			if strings.Contains(target, pat) {
				score += group.score
				break
			}
		}
	}
	return score
}
