package selfplay

import (
	"github.com/samber/lo"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/posdb"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/tt"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

// Admissible reports whether a table record may enter the database at the
// given threshold. Only exact records with a move qualify, and unless
// admitHeuristic is set the score must be the true game value.
func Admissible(e tt.Entry, threshold int, admitHeuristic bool) bool {
	return e.Flag == tt.Exact &&
		e.BestMove >= 0 &&
		e.Depth >= threshold &&
		(e.Proven || admitHeuristic)
}

// Harvest collects the admissible records of the given tables into a batch
// keyed by canonical position.
func Harvest(threshold int, admitHeuristic bool, tables ...*tt.Table) posdb.DB {
	batch := posdb.New()
	for _, table := range tables {
		if table == nil {
			continue
		}
		admitted := lo.Filter(table.Entries(), func(e tt.Entry, _ int) bool {
			return Admissible(e, threshold, admitHeuristic)
		})
		for _, e := range admitted {
			key, mirrored := zobrist.Pair{Key: e.Key, Mirror: e.Mirror}.Canonical()
			move := int(e.BestMove)
			if mirrored {
				move = zobrist.MirrorColumn(move)
			}
			batch.MergeEntry(key, posdb.Entry{Move: int8(move), Depth: e.Depth, Score: e.Score})
		}
	}
	return batch
}
