package runtime

import (
	"context"
	"time"
)

// StubRunner is a deterministic local runner that emits plausible events
// without calling any external model. Used in tests and for dry runs.
type StubRunner struct {
	Output       string
	NumTurns     int
	TotalCostUSD *float64
	Err          error
	// Hook, if set, runs between the start and end events. Tests use it to
	// drop turn files into the workspace the way real experts would.
	Hook func(req RunRequest)
}

func (StubRunner) Name() string { return "stub" }

func (s StubRunner) Run(ctx context.Context, req RunRequest, emit func(Event)) (Result, error) {
	emit(Event{Type: "run_started", Timestamp: time.Now().UTC()})

	if s.Hook != nil {
		s.Hook(req)
	}
	if s.Err != nil {
		return Result{}, s.Err
	}

	sleep(ctx, 10*time.Millisecond)
	emit(Event{Type: "run_ended", Timestamp: time.Now().UTC()})

	turns := s.NumTurns
	if turns == 0 {
		turns = 1
	}
	return Result{NumTurns: turns, TotalCostUSD: s.TotalCostUSD, Output: s.Output}, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
