package selfplay

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// Solver and search progress logs drown test output at info level.
func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}
