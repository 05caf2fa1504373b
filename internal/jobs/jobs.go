// Package jobs runs background work for the daemon. All long-lived agent
// work (roundtables, mention replies) goes through one Runner so shutdown can
// wait for in-flight jobs and panics never take down the process.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kinds of background work.
const (
	KindRoundtable   = "roundtable"
	KindMentionReply = "mention_reply"
)

// Runner executes submitted jobs on their own goroutines.
type Runner struct {
	wg sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{}
}

// Submit starts fn in the background. The job context is detached from the
// caller's cancellation (an HTTP request finishing must not abort the agent
// run) but keeps its values. fn's error is logged, never propagated: job
// outcomes are recorded in topic and post state, not in transport responses.
func (r *Runner) Submit(ctx context.Context, kind, name string, fn func(context.Context) error) {
	jobCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("background job panicked", "kind", kind, "name", name, "panic", rec)
			}
		}()
		start := time.Now()
		slog.Info("background job started", "kind", kind, "name", name)
		if err := fn(jobCtx); err != nil {
			slog.Error("background job failed", "kind", kind, "name", name, "err", err, "duration", time.Since(start))
			return
		}
		slog.Info("background job finished", "kind", kind, "name", name, "duration", time.Since(start))
	}()
}

// Wait blocks until all submitted jobs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
