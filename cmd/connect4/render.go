package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
)

// renderBoard draws b with colored discs. The most recent disc in column
// last is highlighted; pass -1 for none. Non-terminal writers get plain text.
func renderBoard(out io.Writer, b *board.Board, last int) {
	o := termenv.NewOutput(out)
	colors := map[board.Player]termenv.Color{
		board.PlayerOne: o.Color("1"),
		board.PlayerTwo: o.Color("3"),
	}
	lastRow := -1
	if last >= 0 && last < board.Width {
		lastRow = b.Height(last) - 1
	}

	var sb strings.Builder
	for row := board.Height - 1; row >= 0; row-- {
		sb.WriteString("|")
		for col := 0; col < board.Width; col++ {
			sb.WriteString(" ")
			p := b.At(col, row)
			cell := o.String(p.String())
			if c, ok := colors[p]; ok {
				cell = cell.Foreground(c)
			}
			if col == last && row == lastRow {
				cell = cell.Bold().Underline()
			}
			sb.WriteString(cell.String())
		}
		sb.WriteString(" |\n")
	}
	sb.WriteString("|---------------|\n")
	sb.WriteString("  0 1 2 3 4 5 6\n")
	fmt.Fprint(out, sb.String())
}
