package selfplay

import (
	"math"
	"time"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/posdb"
)

type Status struct {
	RunID          string  `json:"run_id"`
	Running        bool    `json:"running"`
	Phase          string  `json:"phase"`
	Mode           Mode    `json:"mode"`
	Evaluator      string  `json:"evaluator"`
	StartedAt      string  `json:"started_at"`
	UpdatedAt      string  `json:"updated_at"`
	Games          int     `json:"games"`
	Moves          int     `json:"moves"`
	Positions      int     `json:"positions"`
	NewPositions   int     `json:"new_positions"`
	Updated        int     `json:"updated"`
	MinDepth       int     `json:"min_depth"`
	TimePerMoveMs  int     `json:"time_per_move_ms"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	EtaSeconds     int     `json:"eta_seconds"`
	LastWinner     string  `json:"last_winner,omitempty"`
}

func (s *Status) setTiming(elapsed, total time.Duration) {
	s.ElapsedSeconds = math.Round(elapsed.Seconds()*10) / 10
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	s.EtaSeconds = int(math.Round(remaining.Seconds()))
}

// GameEvent describes one finished game and what it added to the database.
type GameEvent struct {
	RunID     string `json:"run_id"`
	Game      int    `json:"game"`
	Moves     int    `json:"moves"`
	Winner    string `json:"winner"`
	Threshold int    `json:"threshold"`
	// Elapsed is the run time at which the batch was harvested.
	Elapsed   float64 `json:"elapsed_seconds"`
	Harvested int     `json:"harvested"`
	Added     int     `json:"added"`
	Updated   int     `json:"updated"`
	Positions int     `json:"positions"`
	// Batch holds the harvested entries, all admitted at Threshold.
	Batch posdb.DB `json:"-"`
}

type ThresholdEvent struct {
	RunID   string  `json:"run_id"`
	From    int     `json:"from"`
	To      int     `json:"to"`
	Elapsed float64 `json:"elapsed_seconds"`
}

// Listener observes a run. Callbacks are made from the solver goroutine and
// should return quickly.
type Listener interface {
	OnGameFinished(GameEvent)
	OnThresholdRaised(ThresholdEvent)
	OnFinished(Status)
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped.
type ListenerFuncs struct {
	GameFinished    func(GameEvent)
	ThresholdRaised func(ThresholdEvent)
	Finished        func(Status)
}

func (l ListenerFuncs) OnGameFinished(ev GameEvent) {
	if l.GameFinished != nil {
		l.GameFinished(ev)
	}
}

func (l ListenerFuncs) OnThresholdRaised(ev ThresholdEvent) {
	if l.ThresholdRaised != nil {
		l.ThresholdRaised(ev)
	}
}

func (l ListenerFuncs) OnFinished(st Status) {
	if l.Finished != nil {
		l.Finished(st)
	}
}
