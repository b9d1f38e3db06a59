package eval

import (
	"math/bits"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
)

// Threat counts threat windows: four cells in a horizontal or diagonal line
// holding three of a player's discs and one empty cell. The score is the
// difference in threat counts times 250.
type Threat struct{}

var threatWindows = buildWindows()

func buildWindows() []uint64 {
	var out []uint64
	add := func(col, row, dc, dr int) {
		var m uint64
		for k := 0; k < 4; k++ {
			m |= board.Bit(col+k*dc, row+k*dr)
		}
		out = append(out, m)
	}
	for row := 0; row < board.Height; row++ {
		for col := 0; col+3 < board.Width; col++ {
			add(col, row, 1, 0)
		}
	}
	for row := 0; row+3 < board.Height; row++ {
		for col := 0; col+3 < board.Width; col++ {
			add(col, row, 1, 1)
			add(col+3, row, -1, 1)
		}
	}
	return out
}

func (Threat) Name() string { return "new" }

func (Threat) Evaluate(b *board.Board, p board.Player) int32 {
	if s, ok := terminal(b, p); ok {
		return s
	}
	own, opp := b.Stones(p), b.Stones(p.Other())
	return clamp(int32(countThreats(own, opp)-countThreats(opp, own)) * threatScore)
}

func countThreats(own, opp uint64) int {
	n := 0
	for _, w := range threatWindows {
		if opp&w == 0 && bits.OnesCount64(own&w) == 3 {
			n++
		}
	}
	return n
}
