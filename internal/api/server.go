// Package api exposes the engine, the position database and self-play runs
// over HTTP, with run progress streamed on a websocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/agent"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/config"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/posdb"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/selfplay"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/zobrist"
)

var (
	ErrJobRunning = errors.New("solver already running")
	ErrNoJob      = errors.New("solver not running")
)

const maxMoveBudgetMs = 10_000

type Server struct {
	store  *config.Store
	hub    *Hub
	logger zerolog.Logger

	mu     sync.RWMutex
	db     posdb.DB
	solver *selfplay.Solver

	jobMu     sync.Mutex
	jobCancel context.CancelFunc
	jobDone   chan struct{}
}

func NewServer(store *config.Store, db posdb.DB, hub *Hub) *Server {
	if db == nil {
		db = posdb.New()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		store:  store,
		hub:    hub,
		db:     db,
		logger: log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Attach makes solver the source of status and database reads and streams
// its progress to websocket clients.
func (s *Server) Attach(solver *selfplay.Solver) {
	solver.AddListener(s.hub)
	s.mu.Lock()
	s.solver = solver
	s.mu.Unlock()
}

func (s *Server) database() posdb.DB {
	s.mu.RLock()
	solver, db := s.solver, s.db
	s.mu.RUnlock()
	if solver != nil {
		return solver.Snapshot()
	}
	return db
}

func (s *Server) status() selfplay.Status {
	s.mu.RLock()
	solver, db := s.solver, s.db
	s.mu.RUnlock()
	if solver != nil {
		return solver.Status()
	}
	cfg := s.store.Get()
	return selfplay.Status{
		Phase:     "idle",
		Mode:      selfplay.Mode(cfg.Mode),
		Evaluator: cfg.Evaluator,
		Positions: len(db),
		MinDepth:  cfg.MinDepth,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.status())
	})
	r.Get("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Get())
	})
	r.Post("/api/config", s.handleConfig)
	r.Get("/api/db", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.database().Stats())
	})
	r.Get("/api/db/{moves}", s.handleLookup)
	r.Post("/api/move", s.handleMove)
	r.Post("/api/solver/start", s.handleStart)
	r.Post("/api/solver/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := s.StopSolver("requested via api"); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, s.status())
	})
	r.Get("/ws/progress", s.serveProgressWS)
	return r
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Get()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.store.Update(cfg)
	writeJSON(w, http.StatusOK, cfg)
}

type lookupResponse struct {
	Moves string `json:"moves"`
	Key   string `json:"key"`
	Move  int    `json:"move"`
	Depth int    `json:"depth"`
	Score int32  `json:"score"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	moves := chi.URLParam(r, "moves")
	b, err := board.FromMoves(moves)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	e, ok := s.database().Lookup(b)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "position not found"})
		return
	}
	key, _ := zobrist.Canonical(b)
	writeJSON(w, http.StatusOK, lookupResponse{
		Moves: moves,
		Key:   fmt.Sprintf("0x%016x", uint64(key)),
		Move:  int(e.Move),
		Depth: e.Depth,
		Score: e.Score,
	})
}

type moveRequest struct {
	Moves     string `json:"moves"`
	BudgetMs  int    `json:"budget_ms"`
	Evaluator string `json:"evaluator"`
	Depth     int    `json:"depth"`
}

type moveResponse struct {
	Column    int    `json:"column"`
	Depth     int    `json:"depth"`
	Score     int32  `json:"score"`
	Nodes     uint64 `json:"nodes"`
	Solved    bool   `json:"solved"`
	Book      bool   `json:"book"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Stop      string `json:"stop,omitempty"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var payload moveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	b, err := board.FromMoves(payload.Moves)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if b.GameOver() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "game is over"})
		return
	}
	cfg := s.store.Get()
	name := payload.Evaluator
	if name == "" {
		name = cfg.Evaluator
	}
	ev, err := eval.ByName(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if cfg.UseBook {
		if col, ok := s.database().BestMove(b); ok {
			writeJSON(w, http.StatusOK, moveResponse{Column: col, Book: true})
			return
		}
	}

	budget := payload.BudgetMs
	if budget <= 0 {
		budget = cfg.MoveBudgetMs
	}
	if budget > maxMoveBudgetMs {
		budget = maxMoveBudgetMs
	}
	a := agent.New(agent.Options{
		Evaluator:     ev,
		MaxDepth:      payload.Depth,
		TableCapacity: cfg.TTCapacity,
		TimeBufferMs:  agent.DefaultTimeBufferMs,
	})
	col, err := a.ChooseMoveContext(r.Context(), b, b.ToMove(), budget)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res := a.LastResult()
	writeJSON(w, http.StatusOK, moveResponse{
		Column:    col,
		Depth:     res.Depth,
		Score:     res.Score,
		Nodes:     res.Nodes,
		Solved:    res.Solved,
		ElapsedMs: res.Elapsed.Milliseconds(),
		Stop:      res.Stop.String(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Get()
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.StartSolver(cfg); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrJobRunning) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// StartSolver launches a self-play run in the background. The database is
// written to cfg.DBPath when the run ends.
func (s *Server) StartSolver(cfg config.Config) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.jobCancel != nil {
		return ErrJobRunning
	}
	solver, err := selfplay.New(cfg.SelfPlay(), s.database().Clone())
	if err != nil {
		return err
	}
	s.Attach(solver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.jobCancel = cancel
	s.jobDone = done
	s.logger.Info().Dur("duration", cfg.SelfPlay().Duration).Str("mode", cfg.Mode).Msg("solver started")

	go func() {
		defer close(done)
		db, err := solver.Run(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("solver run failed")
		}
		if cfg.DBPath != "" && db != nil {
			if err := posdb.Save(cfg.DBPath, db); err != nil {
				s.logger.Error().Err(err).Str("path", cfg.DBPath).Msg("save database")
			}
		}
		s.mu.Lock()
		if db != nil {
			s.db = db
		}
		s.mu.Unlock()

		s.jobMu.Lock()
		s.jobCancel = nil
		s.jobDone = nil
		s.jobMu.Unlock()
	}()
	return nil
}

// StopSolver cancels the running job and waits until its database is saved.
func (s *Server) StopSolver(reason string) error {
	s.jobMu.Lock()
	cancel := s.jobCancel
	done := s.jobDone
	s.jobMu.Unlock()
	if cancel == nil {
		return ErrNoJob
	}
	s.logger.Info().Str("reason", reason).Msg("stopping solver")
	cancel()
	<-done
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
