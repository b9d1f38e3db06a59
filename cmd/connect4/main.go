package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/agent"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/api"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/board"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/config"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/posdb"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/selfplay"
)

var errUsage = errors.New("usage: connect4 <solve|move|play|serve|stats> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "connect4:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "solve":
		return runSolve(ctx, args[1:], out)
	case "move":
		return runMove(ctx, args[1:], out)
	case "play":
		return runPlay(ctx, args[1:], out)
	case "serve":
		return runServe(ctx, args[1:])
	case "stats":
		return runStats(args[1:], out)
	default:
		return errors.Wrapf(errUsage, "unknown command %q", args[0])
	}
}

// parseConfig layers the config file, then C4_* variables, then any flag
// given on the command line. bind registers the sub-command's flags against
// the config it receives.
func parseConfig(fs *flag.FlagSet, args []string, bind func(*config.Config)) (config.Config, error) {
	cfg := config.DefaultConfig()
	configPath := fs.String("config", "", "JSON config file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log JSON lines instead of console output")
	if bind != nil {
		bind(&cfg)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	loaded, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	cfg = loaded
	cfg.ApplyEnv()
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func runSolve(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	listen := fs.String("listen", "", "serve the HTTP API while solving (e.g. :8090)")
	cfg, err := parseConfig(fs, args, func(c *config.Config) {
		fs.IntVar(&c.TimeSeconds, "time", c.TimeSeconds, "run length in seconds")
		fs.IntVar(&c.TimePerMoveMs, "move-ms", c.TimePerMoveMs, "time per move in milliseconds")
		fs.IntVar(&c.MaxTimePerMoveMs, "max-move-ms", c.MaxTimePerMoveMs, "ceiling for adaptive time per move")
		fs.IntVar(&c.MinDepth, "min-depth", c.MinDepth, "initial admission depth")
		fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "final admission depth")
		fs.IntVar(&c.SearchDepth, "depth", c.SearchDepth, "cap on search depth per move (0 = none)")
		fs.IntVar(&c.EscalationSteps, "steps", c.EscalationSteps, "number of threshold raises")
		fs.StringVar(&c.Evaluator, "eval", c.Evaluator, "evaluator: old or new")
		fs.StringVar(&c.Mode, "mode", c.Mode, "database mode: merge or replace")
		fs.StringVar(&c.DBPath, "db", c.DBPath, "position database path")
		fs.IntVar(&c.RandomOpeningPlies, "openings", c.RandomOpeningPlies, "random plies at the start of each game")
		fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed")
		fs.BoolVar(&c.AdaptiveTime, "adaptive", c.AdaptiveTime, "double time per move when discovery stalls")
		fs.BoolVar(&c.AdmitHeuristic, "admit-heuristic", c.AdmitHeuristic, "admit unproven exact records")
		fs.BoolVar(&c.PreloadTables, "preload", c.PreloadTables, "seed agent tables from the database before each game")
		fs.IntVar(&c.TTCapacity, "tt", c.TTCapacity, "transposition table capacity (0 = unbounded)")
	})
	if err != nil {
		return err
	}

	solver, err := selfplay.New(cfg.SelfPlay(), selfplay.LoadDB(cfg.DBPath, selfplay.Mode(cfg.Mode)))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runDone := make(chan struct{})
	var result posdb.DB
	g.Go(func() error {
		defer close(runDone)
		db, err := solver.Run(gctx)
		result = db
		return err
	})
	if *listen != "" {
		srv := api.NewServer(config.NewStore(cfg), nil, nil)
		srv.Attach(solver)
		serveUntil(gctx, g, runDone, srv, *listen)
	}
	waitErr := g.Wait()
	if result == nil {
		return waitErr
	}
	if err := posdb.Save(cfg.DBPath, result); err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}
	st := solver.Status()
	fmt.Fprintf(out, "games=%d moves=%d positions=%d new=%d updated=%d db=%s\n",
		st.Games, st.Moves, st.Positions, st.NewPositions, st.Updated, cfg.DBPath)
	return nil
}

// serveUntil runs the API until ctx is cancelled or stop is closed.
func serveUntil(ctx context.Context, g *errgroup.Group, stop <-chan struct{}, srv *api.Server, addr string) {
	server := &http.Server{Addr: addr, Handler: srv.Router()}
	hubDone := make(chan struct{})
	g.Go(func() error {
		srv.Hub().Run(hubDone)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "api server")
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		defer close(hubDone)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

func runMove(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	moves := fs.String("moves", "", "moves played so far as column digits, e.g. 3344")
	depth := fs.Int("depth", 0, "cap on search depth (0 = none)")
	cfg, err := parseConfig(fs, args, func(c *config.Config) {
		fs.IntVar(&c.MoveBudgetMs, "budget", c.MoveBudgetMs, "time budget in milliseconds")
		fs.StringVar(&c.Evaluator, "eval", c.Evaluator, "evaluator: old or new")
		fs.StringVar(&c.DBPath, "db", c.DBPath, "position database consulted before searching")
		fs.BoolVar(&c.UseBook, "book", c.UseBook, "play stored database moves without searching")
	})
	if err != nil {
		return err
	}
	b, err := board.FromMoves(*moves)
	if err != nil {
		return err
	}
	ev, err := eval.ByName(cfg.Evaluator)
	if err != nil {
		return err
	}
	opts := agent.Options{
		Evaluator:     ev,
		MaxDepth:      *depth,
		TableCapacity: cfg.TTCapacity,
		TimeBufferMs:  agent.DefaultTimeBufferMs,
	}
	if cfg.UseBook {
		opts.Book = selfplay.LoadDB(cfg.DBPath, selfplay.ModeMerge)
	}
	a := agent.New(opts)
	col, err := a.ChooseMoveContext(ctx, b, b.ToMove(), cfg.MoveBudgetMs)
	if err != nil {
		return err
	}
	res := a.LastResult()
	if err := b.Play(col); err != nil {
		return err
	}
	renderBoard(out, b, col)
	fmt.Fprintf(out, "column=%d depth=%d score=%d nodes=%d solved=%t\n", col, res.Depth, res.Score, res.Nodes, res.Solved)
	return nil
}

func runPlay(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	evalOne := fs.String("eval-one", "new", "evaluator for the first player")
	evalTwo := fs.String("eval-two", "old", "evaluator for the second player")
	cfg, err := parseConfig(fs, args, func(c *config.Config) {
		fs.IntVar(&c.MoveBudgetMs, "budget", c.MoveBudgetMs, "time budget per move in milliseconds")
		fs.IntVar(&c.RandomOpeningPlies, "openings", c.RandomOpeningPlies, "random plies before the agents take over")
		fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed for the opening")
	})
	if err != nil {
		return err
	}
	var agents [2]*agent.Agent
	for i, name := range []string{*evalOne, *evalTwo} {
		ev, err := eval.ByName(name)
		if err != nil {
			return err
		}
		agents[i] = agent.New(agent.Options{Evaluator: ev, RetainTable: true, TableCapacity: cfg.TTCapacity, TimeBufferMs: agent.DefaultTimeBufferMs})
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	b := board.New()
	for i := 0; i < cfg.RandomOpeningPlies && !b.GameOver(); i++ {
		valid := b.ValidMoves()
		if err := b.Play(valid[rng.Intn(len(valid))]); err != nil {
			return err
		}
	}
	for !b.GameOver() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p := b.ToMove()
		col, err := agents[p-1].ChooseMoveContext(ctx, b, p, cfg.MoveBudgetMs)
		if err != nil {
			return err
		}
		if err := b.Play(col); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s plays %d\n", p, col)
		renderBoard(out, b, col)
	}
	if w := b.Winner(); w != board.None {
		fmt.Fprintf(out, "winner: %s (%s)\n", w, []string{*evalOne, *evalTwo}[w-1])
	} else {
		fmt.Fprintln(out, "draw")
	}
	fmt.Fprintf(out, "moves: %s\n", b.History())
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg, err := parseConfig(fs, args, func(c *config.Config) {
		fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address")
		fs.StringVar(&c.DBPath, "db", c.DBPath, "position database path")
		fs.IntVar(&c.MoveBudgetMs, "budget", c.MoveBudgetMs, "default move budget in milliseconds")
	})
	if err != nil {
		return err
	}
	srv := api.NewServer(config.NewStore(cfg), selfplay.LoadDB(cfg.DBPath, selfplay.ModeMerge), nil)
	g, gctx := errgroup.WithContext(ctx)
	serveUntil(gctx, g, nil, srv, cfg.Listen)
	err = g.Wait()
	if stopErr := srv.StopSolver("shutdown"); stopErr != nil && !errors.Is(stopErr, api.ErrNoJob) {
		log.Warn().Err(stopErr).Msg("stop solver")
	}
	return err
}

func runStats(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	cfg, err := parseConfig(fs, args, func(c *config.Config) {
		fs.StringVar(&c.DBPath, "db", c.DBPath, "position database path")
	})
	if err != nil {
		return err
	}
	db, err := posdb.Load(cfg.DBPath)
	if err != nil {
		return err
	}
	st := db.Stats()
	fmt.Fprintf(out, "positions: %d\n", st.Positions)
	if st.Positions == 0 {
		return nil
	}
	fmt.Fprintf(out, "depth: %d..%d\n", st.MinDepth, st.MaxDepth)
	for _, d := range st.Depths() {
		fmt.Fprintf(out, "  depth %2d: %d\n", d, st.ByDepth[d])
	}
	for col, n := range st.ByMove {
		fmt.Fprintf(out, "  column %d: %d\n", col, n)
	}
	return nil
}
