package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/eval"
	"github.com/christian-armstrong25/Connect-4-Bot/internal/selfplay"
)

type Config struct {
	TimeSeconds        int    `json:"time_seconds"`
	TimePerMoveMs      int    `json:"time_per_move_ms"`
	MaxTimePerMoveMs   int    `json:"max_time_per_move_ms"`
	MinDepth           int    `json:"min_depth"`
	MaxDepth           int    `json:"max_depth"`
	SearchDepth        int    `json:"search_depth"`
	EscalationSteps    int    `json:"escalation_steps"`
	Evaluator          string `json:"evaluator"`
	Mode               string `json:"mode"`
	RandomOpeningPlies int    `json:"random_opening_plies"`
	Seed               int64  `json:"seed"`
	AdaptiveTime       bool   `json:"adaptive_time"`
	AdmitHeuristic     bool   `json:"admit_heuristic"`
	PreloadTables      bool   `json:"preload_tables"`
	TTCapacity         int    `json:"tt_capacity"`
	DBPath             string `json:"db_path"`
	Listen             string `json:"listen"`
	MoveBudgetMs       int    `json:"move_budget_ms"`
	UseBook            bool   `json:"use_book"`
	LogLevel           string `json:"log_level"`
	LogJSON            bool   `json:"log_json"`
}

func DefaultConfig() Config {
	return Config{
		TimeSeconds:        60,
		TimePerMoveMs:      100,
		MaxTimePerMoveMs:   10_000,
		MinDepth:           0,
		MaxDepth:           12,
		SearchDepth:        0,
		EscalationSteps:    4,
		Evaluator:          "new",
		Mode:               string(selfplay.ModeMerge),
		RandomOpeningPlies: 2,
		Seed:               1,
		AdaptiveTime:       true,
		PreloadTables:      true,
		TTCapacity:         1 << 20,
		DBPath:             "positions.c4db",
		Listen:             ":8080",
		MoveBudgetMs:       500,
		UseBook:            true,
		LogLevel:           "info",
	}
}

// Load reads a JSON config on top of the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from C4_* environment variables.
func (c *Config) ApplyEnv() {
	c.TimeSeconds = getenvInt("C4_TIME_SECONDS", c.TimeSeconds)
	c.TimePerMoveMs = getenvInt("C4_MOVE_MS", c.TimePerMoveMs)
	c.MinDepth = getenvInt("C4_MIN_DEPTH", c.MinDepth)
	c.MaxDepth = getenvInt("C4_MAX_DEPTH", c.MaxDepth)
	c.Evaluator = getenv("C4_EVALUATOR", c.Evaluator)
	c.Mode = getenv("C4_MODE", c.Mode)
	c.DBPath = getenv("C4_DB_PATH", c.DBPath)
	c.Listen = getenv("C4_LISTEN", c.Listen)
	c.TTCapacity = getenvInt("C4_TT_CAPACITY", c.TTCapacity)
	c.LogLevel = getenv("C4_LOG_LEVEL", c.LogLevel)
}

// Validate clamps numeric fields into range and rejects unknown names.
func (c *Config) Validate() error {
	if c.TimeSeconds < 1 {
		c.TimeSeconds = 1
	}
	if c.TimePerMoveMs < 1 {
		c.TimePerMoveMs = 1
	}
	if c.MaxTimePerMoveMs < c.TimePerMoveMs {
		c.MaxTimePerMoveMs = c.TimePerMoveMs
	}
	if c.MinDepth < 0 {
		c.MinDepth = 0
	}
	if c.MaxDepth < c.MinDepth {
		c.MaxDepth = c.MinDepth
	}
	if c.SearchDepth < 0 {
		c.SearchDepth = 0
	}
	if c.EscalationSteps < 1 {
		c.EscalationSteps = 1
	}
	if c.RandomOpeningPlies < 0 {
		c.RandomOpeningPlies = 0
	}
	if c.TTCapacity < 0 {
		c.TTCapacity = 0
	}
	if c.MoveBudgetMs < 1 {
		c.MoveBudgetMs = 1
	}
	if _, err := eval.ByName(c.Evaluator); err != nil {
		return err
	}
	mode, err := selfplay.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = string(mode)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// SelfPlay converts the config into solver options.
func (c Config) SelfPlay() selfplay.Options {
	return selfplay.Options{
		Duration:           time.Duration(c.TimeSeconds) * time.Second,
		TimePerMoveMs:      c.TimePerMoveMs,
		MinDepth:           c.MinDepth,
		MaxDepth:           c.MaxDepth,
		EscalationSteps:    c.EscalationSteps,
		SearchDepth:        c.SearchDepth,
		Evaluator:          c.Evaluator,
		Mode:               selfplay.Mode(c.Mode),
		RandomOpeningPlies: c.RandomOpeningPlies,
		Seed:               c.Seed,
		AdaptiveTime:       c.AdaptiveTime,
		MaxTimePerMoveMs:   c.MaxTimePerMoveMs,
		AdmitHeuristic:     c.AdmitHeuristic,
		PreloadTables:      c.PreloadTables,
		TableCapacity:      c.TTCapacity,
	}
}

// Store guards a config shared between the HTTP API and running jobs.
type Store struct {
	mu     sync.RWMutex
	config Config
}

func NewStore(cfg Config) *Store {
	return &Store{config: cfg}
}

func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Store) Update(newConfig Config) {
	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
