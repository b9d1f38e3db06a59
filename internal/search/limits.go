package search

import (
	"encoding/json"
	"strings"
	"time"
)

type Limits struct {
	// Depth caps iterative deepening; zero or less means no cap.
	Depth int
	// Movetime is the budget in milliseconds; -1 means no deadline.
	Movetime int
}

const DefaultMovetimeLimit = -1

func DefaultLimits() Limits {
	return Limits{Depth: 0, Movetime: DefaultMovetimeLimit}
}

func (l Limits) SetDepth(depth int) Limits {
	l.Depth = depth
	return l
}

func (l Limits) SetMovetime(ms int) Limits {
	l.Movetime = ms
	return l
}

func (l Limits) String() string {
	builder := strings.Builder{}
	_ = json.NewEncoder(&builder).Encode(l)
	return strings.TrimSpace(builder.String())
}

// deadline is computed once per top-level search.
func (l Limits) deadline(now time.Time) (time.Time, bool) {
	if l.Movetime < 0 {
		return time.Time{}, false
	}
	return now.Add(time.Duration(l.Movetime) * time.Millisecond), true
}

type StopReason int

const (
	StopNone      StopReason = 0
	StopInterrupt StopReason = 1 // context cancelled
	StopMovetime  StopReason = 2 // deadline reached
	StopDepth     StopReason = 4 // depth limit reached
	StopSolved    StopReason = 8 // game value established
)

func (sr StopReason) String() string {
	if sr == StopNone {
		return "None"
	}
	reasons := []struct {
		flag StopReason
		name string
	}{
		{StopInterrupt, "Interrupt"},
		{StopMovetime, "Movetime"},
		{StopDepth, "Depth"},
		{StopSolved, "Solved"},
	}
	var result string
	for _, r := range reasons {
		if sr&r.flag == r.flag {
			if result != "" {
				result += "|"
			}
			result += r.name
		}
	}
	return result
}
