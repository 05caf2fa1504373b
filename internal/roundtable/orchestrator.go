// Package roundtable runs multi-expert discussions. A roundtable is one
// agent run: a moderator agent delegates to per-expert sub-agents, the
// experts write turn files into the topic workspace, and the terminal result
// is snapshotted onto the topic record. The workspace files remain the
// source of truth; partial transcripts survive failures.
package roundtable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/agent/runtime"
	"github.com/TashanGKD/Tashan-TopicLab/internal/experts"
	"github.com/TashanGKD/Tashan-TopicLab/internal/jobs"
	"github.com/TashanGKD/Tashan-TopicLab/internal/notify"
	"github.com/TashanGKD/Tashan-TopicLab/internal/otel"
	"github.com/TashanGKD/Tashan-TopicLab/internal/topics"
	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

// ErrNoExperts is returned when a roundtable is started on a topic with no
// experts configured anywhere.
var ErrNoExperts = errors.New("topic has no experts")

// defaultSystemPrompt frames the moderator run when the skills directory has
// no system.md for it.
const defaultSystemPrompt = `You are the moderator of an expert roundtable.
Your working directory is {ws_abs}. All files you read and write stay inside
it. Delegate expert contributions to the configured sub-agents.`

// Publisher receives orchestration events for live streaming. The zero-value
// orchestrator publishes nowhere.
type Publisher interface {
	Publish(event string, data map[string]any)
}

// Orchestrator wires topic state, expert resolution, and the agent runner
// into the roundtable lifecycle.
type Orchestrator struct {
	Topics    *topics.Store
	Registry  *experts.Registry
	Modes     *Modes
	Jobs      *jobs.Runner
	Runner    runtime.Runner
	SkillsDir string
	Env       map[string]string
	Publisher Publisher
	Notifier  notify.Notifier // optional; terminal outcomes only
}

// Start validates the topic, transitions it to running, and submits the
// discussion as a background job. It returns once the job is accepted; the
// outcome lands on the topic record.
func (o *Orchestrator) Start(ctx context.Context, topicID string, req models.StartRoundtableRequest) (models.Topic, error) {
	t, err := o.Topics.Get(topicID)
	if err != nil {
		return models.Topic{}, err
	}
	ws, err := workspace.EnsureTopicWorkspace(o.Topics.Base(), t.ID)
	if err != nil {
		return models.Topic{}, err
	}

	names := t.ExpertNames
	if len(names) == 0 {
		for _, e := range experts.ListExperts(ws) {
			names = append(names, e.Name)
		}
	}
	if len(names) == 0 {
		return models.Topic{}, ErrNoExperts
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = models.DefaultRoundtableMaxTurns
	}
	budget := req.MaxBudgetUSD
	if budget <= 0 {
		budget = models.DefaultRoundtableBudgetUSD
	}

	started, err := o.Topics.StartRoundtable(t.ID)
	if err != nil {
		return models.Topic{}, err
	}

	o.Jobs.Submit(ctx, jobs.KindRoundtable, t.ID, func(jobCtx context.Context) error {
		o.run(jobCtx, started, ws, names, maxTurns, budget)
		return nil
	})
	return started, nil
}

func (o *Orchestrator) run(ctx context.Context, t models.Topic, ws string, names []string, maxTurns int, budget float64) {
	start := time.Now()
	o.publish("roundtable_started", map[string]any{"topic_id": t.ID, "experts": names})

	res, err := o.execute(ctx, t, ws, names, maxTurns, budget)
	if err != nil {
		slog.Error("roundtable failed", "topic", t.ID, "err", err)
		if _, ferr := o.Topics.FinishRoundtable(t.ID, models.RoundtableFailed, nil); ferr != nil {
			slog.Error("failed to record roundtable failure", "topic", t.ID, "err", ferr)
		}
		otel.RecordRoundtable(ctx, models.RoundtableFailed, time.Since(start))
		o.publish("roundtable_failed", map[string]any{"topic_id": t.ID})
		o.notify(ctx, fmt.Sprintf("Roundtable failed on topic %q", t.Title))
		return
	}

	transcript := workspace.ReadTranscript(ws, experts.LabelLookup(ws, o.Registry))
	result := &models.RoundtableResult{
		DiscussionHistory: transcript,
		DiscussionSummary: workspace.ReadSummary(ws),
		TurnsCount:        res.NumTurns,
		CostUSD:           res.TotalCostUSD,
		CompletedAt:       models.NowISO(),
	}
	if _, err := o.Topics.FinishRoundtable(t.ID, models.RoundtableCompleted, result); err != nil {
		slog.Error("failed to record roundtable result", "topic", t.ID, "err", err)
	}
	otel.RecordRoundtable(ctx, models.RoundtableCompleted, time.Since(start))
	if res.TotalCostUSD != nil {
		otel.RecordAgentCost(ctx, jobs.KindRoundtable, *res.TotalCostUSD)
	}
	o.publish("roundtable_completed", map[string]any{
		"topic_id":    t.ID,
		"turns_count": res.NumTurns,
	})
	o.notify(ctx, fmt.Sprintf("Roundtable completed on topic %q (%d turns)", t.Title, res.NumTurns))
}

func (o *Orchestrator) execute(ctx context.Context, t models.Topic, ws string, names []string, maxTurns int, budget float64) (runtime.Result, error) {
	if err := o.Registry.EnsureDefaultRoles(ws, names); err != nil {
		return runtime.Result{}, fmt.Errorf("seed expert roles: %w", err)
	}
	cfg := LoadModeConfig(ws)
	if cfg.NumRounds <= 0 {
		cfg.NumRounds = t.NumRounds
	}
	if _, err := o.Modes.PrepareModeratorSkill(ws, t, cfg, names); err != nil {
		return runtime.Result{}, fmt.Errorf("prepare moderator skill: %w", err)
	}

	req := runtime.RunRequest{
		SystemPrompt: o.systemPrompt(ws),
		Prompt:       ModeratorPrompt(),
		Dir:          ws,
		AllowedTools: []string{"Read", "Write", "Glob", "Task"},
		Agents:       o.Registry.BuildAgents(ws, names),
		MaxTurns:     maxTurns,
		MaxBudgetUSD: budget,
		Env:          o.Env,
	}
	return o.Runner.Run(ctx, req, func(ev runtime.Event) {
		o.publish("agent_event", map[string]any{
			"topic_id": t.ID,
			"type":     ev.Type,
			"agent":    ev.Agent,
		})
	})
}

func (o *Orchestrator) systemPrompt(ws string) string {
	absWS, err := filepath.Abs(ws)
	if err != nil {
		absWS = ws
	}
	tmpl := defaultSystemPrompt
	if o.SkillsDir != "" {
		if b, err := os.ReadFile(filepath.Join(o.SkillsDir, "moderator", "system.md")); err == nil {
			tmpl = string(b)
		}
	}
	return strings.ReplaceAll(tmpl, "{ws_abs}", absWS)
}

// Status reports the live roundtable state for a topic. Progress is derived
// from turn files on disk and only included while the discussion runs.
func (o *Orchestrator) Status(topicID string) (models.RoundtableStatusResponse, error) {
	t, err := o.Topics.Get(topicID)
	if err != nil {
		return models.RoundtableStatusResponse{}, err
	}
	resp := models.RoundtableStatusResponse{
		Status: t.RoundtableStatus,
		Result: t.RoundtableResult,
	}
	if t.RoundtableStatus == models.RoundtableRunning {
		ws, err := workspace.TopicDirChecked(o.Topics.Base(), t.ID)
		if err != nil {
			return models.RoundtableStatusResponse{}, err
		}
		expertCount := len(t.ExpertNames)
		if expertCount == 0 {
			expertCount = len(experts.ListExperts(ws))
		}
		numRounds := t.NumRounds
		if numRounds <= 0 {
			numRounds = LoadModeConfig(ws).NumRounds
		}
		p := workspace.ReadProgress(ws, expertCount, numRounds, experts.LabelLookup(ws, o.Registry))
		resp.Progress = &p
	}
	return resp, nil
}

func (o *Orchestrator) publish(event string, data map[string]any) {
	if o.Publisher == nil {
		return
	}
	o.Publisher.Publish(event, data)
}

func (o *Orchestrator) notify(ctx context.Context, message string) {
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Notify(ctx, message); err != nil {
		slog.Warn("notification failed", "channel", o.Notifier.Name(), "err", err)
	}
}
