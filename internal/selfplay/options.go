package selfplay

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMerge, "":
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", errors.Errorf("unknown mode %q (want merge or replace)", s)
	}
}

type Options struct {
	// Duration bounds the whole run.
	Duration time.Duration
	// TimePerMoveMs is the budget handed to each agent per move. A negative
	// value removes the deadline, which requires SearchDepth.
	TimePerMoveMs int
	// MinDepth is the admission threshold at the start of the run and
	// MaxDepth the threshold it climbs to.
	MinDepth        int
	MaxDepth        int
	EscalationSteps int
	// SearchDepth caps each agent's iterative deepening; zero means only the
	// clock stops it.
	SearchDepth int
	Evaluator   string
	Mode        Mode
	// RandomOpeningPlies random moves start each game.
	RandomOpeningPlies int
	Seed               int64
	AdaptiveTime       bool
	MaxTimePerMoveMs   int
	// AdmitHeuristic also harvests exact records whose score rests on the
	// evaluator rather than on finished games.
	AdmitHeuristic bool
	TableCapacity  int
	// PreloadTables seeds both agents' tables with the database before
	// every game so searches start from what earlier runs established.
	PreloadTables bool
}

const discoveryWindow = 10

func DefaultOptions() Options {
	return Options{
		Duration:           60 * time.Second,
		TimePerMoveMs:      100,
		MinDepth:           0,
		MaxDepth:           12,
		EscalationSteps:    4,
		Evaluator:          "new",
		Mode:               ModeMerge,
		RandomOpeningPlies: 2,
		Seed:               1,
		AdaptiveTime:       true,
		MaxTimePerMoveMs:   10_000,
		TableCapacity:      1 << 20,
		PreloadTables:      true,
	}
}

// Validate clamps out of range values and rejects unusable combinations.
func (o *Options) Validate() error {
	if o.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	if o.TimePerMoveMs < 0 && o.SearchDepth <= 0 {
		return errors.New("unbounded move time needs a search depth")
	}
	if o.TimePerMoveMs == 0 {
		o.TimePerMoveMs = 1
	}
	if o.MinDepth < 0 {
		o.MinDepth = 0
	}
	if o.MaxDepth < o.MinDepth {
		o.MaxDepth = o.MinDepth
	}
	if o.EscalationSteps < 1 {
		o.EscalationSteps = 1
	}
	if o.RandomOpeningPlies < 0 {
		o.RandomOpeningPlies = 0
	}
	if o.MaxTimePerMoveMs < o.TimePerMoveMs {
		o.MaxTimePerMoveMs = o.TimePerMoveMs
	}
	if o.TableCapacity < 0 {
		o.TableCapacity = 0
	}
	mode, err := ParseMode(string(o.Mode))
	if err != nil {
		return err
	}
	o.Mode = mode
	return nil
}

// Threshold is the admission depth in force after frac of the run has
// elapsed. It climbs from MinDepth to MaxDepth in EscalationSteps equal
// steps taken at equal fractions of the run.
func (o Options) Threshold(frac float64) int {
	steps := max(o.EscalationSteps, 1)
	if frac < 0 {
		frac = 0
	}
	step := int(frac * float64(steps))
	if step > steps {
		step = steps
	}
	return o.MinDepth + step*(o.MaxDepth-o.MinDepth)/steps
}
