package selfplay

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/agent"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/posdb"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/tt"
)

// Solver plays agents against each other for a fixed wall-clock duration
// and folds what their tables prove into a position database.
type Solver struct {
	opts      Options
	evaluator eval.Evaluator
	dbMu      sync.RWMutex
	db        posdb.DB
	agents    [2]*agent.Agent
	rng       *rand.Rand
	now       func() time.Time
	logger    zerolog.Logger

	listenerMu sync.Mutex
	listeners  []Listener

	statusMu sync.RWMutex
	status   Status
}

// New prepares a run over db. In replace mode db is discarded when the run
// starts.
func New(opts Options, db posdb.DB) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "self-play options")
	}
	ev, err := eval.ByName(opts.Evaluator)
	if err != nil {
		return nil, err
	}
	if db == nil {
		db = posdb.New()
	}
	s := &Solver{
		opts:      opts,
		evaluator: ev,
		db:        db,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		now:       time.Now,
		logger:    log.With().Str("component", "selfplay").Logger(),
	}
	for i := range s.agents {
		s.agents[i] = agent.New(agent.Options{
			Evaluator:     ev,
			MaxDepth:      opts.SearchDepth,
			RetainTable:   true,
			TableCapacity: opts.TableCapacity,
			TimeBufferMs:  agent.DefaultTimeBufferMs,
		})
	}
	s.status = Status{
		Phase:         "idle",
		Mode:          opts.Mode,
		Evaluator:     ev.Name(),
		Positions:     len(db),
		MinDepth:      opts.MinDepth,
		TimePerMoveMs: opts.TimePerMoveMs,
	}
	return s, nil
}

// SetClock replaces the clock driving the run length and depth schedule.
// Agents keep timing their moves with the real clock.
func (s *Solver) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Solver) AddListener(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Solver) notify(fn func(Listener)) {
	s.listenerMu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenerMu.Unlock()
	for _, l := range listeners {
		fn(l)
	}
}

func (s *Solver) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Solver) updateStatus(mutator func(*Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	mutator(&s.status)
	s.status.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Snapshot returns a copy of the database that is safe to read while the
// run continues.
func (s *Solver) Snapshot() posdb.DB {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db.Clone()
}

func (s *Solver) merge(batch posdb.DB) (added, updated, size int) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	added, updated = posdb.Merge(s.db, batch)
	return added, updated, len(s.db)
}

// Run plays games until the duration elapses or ctx is cancelled, then
// harvests the last tables once more and returns the database.
func (s *Solver) Run(ctx context.Context) (posdb.DB, error) {
	runID := uuid.NewString()
	start := s.now()
	deadline := start.Add(s.opts.Duration)
	s.dbMu.Lock()
	if s.opts.Mode == ModeReplace {
		s.db = posdb.New()
	}
	initial := len(s.db)
	s.dbMu.Unlock()
	threshold := s.opts.Threshold(0)
	timePerMove := s.opts.TimePerMoveMs
	var window []int

	s.updateStatus(func(st *Status) {
		st.RunID = runID
		st.Running = true
		st.Phase = "running"
		st.StartedAt = start.UTC().Format(time.RFC3339)
		st.Games, st.Moves, st.NewPositions, st.Updated = 0, 0, 0, 0
		st.Positions = initial
		st.MinDepth = threshold
		st.TimePerMoveMs = timePerMove
		st.setTiming(0, s.opts.Duration)
	})
	s.logger.Info().
		Str("run_id", runID).
		Str("mode", string(s.opts.Mode)).
		Str("evaluator", s.evaluator.Name()).
		Dur("duration", s.opts.Duration).
		Int("time_per_move_ms", timePerMove).
		Int("min_depth", threshold).
		Int("positions", initial).
		Int("tt_capacity", s.agents[0].Table().Capacity()).
		Bool("preload", s.opts.PreloadTables).
		Msg("self-play started")

	unfinishedMoves := 0
	for game := 1; ; game++ {
		if ctx.Err() != nil || !s.now().Before(deadline) {
			break
		}
		winner, moves, finished := s.playGame(ctx, deadline, timePerMove)
		if !finished {
			unfinishedMoves = moves
			break
		}
		var elapsed time.Duration
		threshold, elapsed = s.escalate(runID, start, threshold)
		batch := Harvest(threshold, s.opts.AdmitHeuristic, s.agents[0].Table(), s.agents[1].Table())
		added, updated, size := s.merge(batch)

		s.updateStatus(func(st *Status) {
			st.Games = game
			st.Moves += moves
			st.Positions = size
			st.NewPositions = size - initial
			st.Updated += updated
			st.MinDepth = threshold
			st.TimePerMoveMs = timePerMove
			st.LastWinner = winnerName(winner)
			st.setTiming(elapsed, s.opts.Duration)
		})
		s.logger.Debug().
			Int("game", game).
			Int("moves", moves).
			Str("winner", winnerName(winner)).
			Int("threshold", threshold).
			Int("harvested", len(batch)).
			Int("added", added).
			Int("updated", updated).
			Int("positions", size).
			Msg("game finished")
		ev := GameEvent{
			RunID:     runID,
			Game:      game,
			Moves:     moves,
			Winner:    winnerName(winner),
			Threshold: threshold,
			Elapsed:   elapsed.Seconds(),
			Harvested: len(batch),
			Added:     added,
			Updated:   updated,
			Positions: size,
			Batch:     batch,
		}
		s.notify(func(l Listener) { l.OnGameFinished(ev) })

		if s.opts.AdaptiveTime {
			window = append(window, added)
			if len(window) > discoveryWindow {
				window = window[1:]
			}
			if len(window) == discoveryWindow && sum(window) == 0 && timePerMove > 0 && timePerMove < s.opts.MaxTimePerMoveMs {
				timePerMove = min(timePerMove*2, s.opts.MaxTimePerMoveMs)
				window = window[:0]
				s.logger.Info().Int("time_per_move_ms", timePerMove).Msg("no new positions, raising time per move")
			}
		}
	}

	// the final pass picks up a game cut short by the deadline or ctx
	threshold, elapsed := s.escalate(runID, start, threshold)
	final := Harvest(threshold, s.opts.AdmitHeuristic, s.agents[0].Table(), s.agents[1].Table())
	added, updated, size := s.merge(final)

	s.updateStatus(func(st *Status) {
		st.Running = false
		st.Phase = "finished"
		st.Moves += unfinishedMoves
		st.Positions = size
		st.NewPositions = size - initial
		st.Updated += updated
		st.MinDepth = threshold
		st.TimePerMoveMs = timePerMove
		st.setTiming(elapsed, s.opts.Duration)
		st.EtaSeconds = 0
	})
	st := s.Status()
	s.logger.Info().
		Str("run_id", runID).
		Int("games", st.Games).
		Int("moves", st.Moves).
		Int("positions", st.Positions).
		Int("new_positions", st.NewPositions).
		Int("final_added", added).
		Int("min_depth", threshold).
		Int("time_per_move_ms", timePerMove).
		Msg("self-play finished")
	s.notify(func(l Listener) { l.OnFinished(st) })
	return s.Snapshot(), nil
}

// escalate returns the admission threshold for the current point of the
// run, announcing any rise over current.
func (s *Solver) escalate(runID string, start time.Time, current int) (int, time.Duration) {
	elapsed := s.now().Sub(start)
	next := s.opts.Threshold(float64(elapsed) / float64(s.opts.Duration))
	if next <= current {
		return current, elapsed
	}
	s.logger.Info().Int("from", current).Int("to", next).Dur("elapsed", elapsed).Msg("minimum depth raised")
	ev := ThresholdEvent{RunID: runID, From: current, To: next, Elapsed: elapsed.Seconds()}
	s.notify(func(l Listener) { l.OnThresholdRaised(ev) })
	return next, elapsed
}

// preload stores every database entry in both agents' tables under its
// canonical key. Searches find the other orientation through the mirrored
// lookup. The records are not marked proven, so harvesting them again only
// repeats what the database already holds.
func (s *Solver) preload() {
	if !s.opts.PreloadTables {
		return
	}
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	for _, key := range s.db.SortedKeys() {
		e := s.db[key]
		rec := tt.Entry{
			Key:      key,
			Mirror:   key,
			Depth:    e.Depth,
			Score:    e.Score,
			Flag:     tt.Exact,
			BestMove: e.Move,
		}
		for _, a := range s.agents {
			a.Table().Store(rec)
		}
	}
}

// playGame plays one game from a few random opening plies. finished is
// false when ctx was cancelled or the run deadline passed before the game
// ended. Each move gets at most the run time that is left.
func (s *Solver) playGame(ctx context.Context, deadline time.Time, timePerMove int) (board.Player, int, bool) {
	for _, a := range s.agents {
		a.Reset()
	}
	s.preload()
	b := board.New()
	for i := 0; i < s.opts.RandomOpeningPlies && !b.GameOver(); i++ {
		moves := b.ValidMoves()
		if err := b.Play(moves[s.rng.Intn(len(moves))]); err != nil {
			return board.None, b.Moves(), false
		}
	}
	for !b.GameOver() {
		if ctx.Err() != nil {
			return board.None, b.Moves(), false
		}
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return board.None, b.Moves(), false
		}
		budget := timePerMove
		if budget >= 0 {
			budget = int(min(int64(budget), remaining.Milliseconds()))
		}
		mover := b.ToMove()
		col, err := s.agents[mover-1].ChooseMoveContext(ctx, b, mover, budget)
		if err != nil {
			s.logger.Warn().Err(err).Str("moves", b.History()).Msg("agent failed to move")
			return board.None, b.Moves(), false
		}
		if ctx.Err() != nil {
			return board.None, b.Moves(), false
		}
		if err := b.Play(col); err != nil {
			s.logger.Warn().Err(err).Str("moves", b.History()).Msg("agent returned an illegal move")
			return board.None, b.Moves(), false
		}
	}
	return b.Winner(), b.Moves(), true
}

func winnerName(p board.Player) string {
	switch p {
	case board.PlayerOne:
		return "one"
	case board.PlayerTwo:
		return "two"
	default:
		return "draw"
	}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

// LoadDB reads the database for a run. In replace mode nothing is read. Any
// load failure is logged and the run starts from an empty database.
func LoadDB(path string, mode Mode) posdb.DB {
	if mode == ModeReplace || path == "" {
		return posdb.New()
	}
	db, err := posdb.Load(path)
	if err != nil {
		log.Warn().Err(err).Str("component", "selfplay").Str("path", path).Msg("ignoring unreadable database, starting empty")
		return posdb.New()
	}
	return db
}
