package roundtable

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/agent/runtime"
	"github.com/TashanGKD/Tashan-TopicLab/internal/experts"
	"github.com/TashanGKD/Tashan-TopicLab/internal/jobs"
	"github.com/TashanGKD/Tashan-TopicLab/internal/topics"
	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, data map[string]any) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

func newOrchestrator(t *testing.T, runner runtime.Runner) (*Orchestrator, *topics.Store, *recordingPublisher) {
	t.Helper()
	store := topics.NewStore(t.TempDir())
	pub := &recordingPublisher{}
	o := &Orchestrator{
		Topics:    store,
		Registry:  experts.LoadRegistry(t.TempDir()),
		Modes:     LoadModes(t.TempDir()),
		Jobs:      jobs.NewRunner(),
		Runner:    runner,
		Publisher: pub,
	}
	return o, store, pub
}

func TestStartRunsDiscussionToCompletion(t *testing.T) {
	cost := 0.5
	runner := runtime.StubRunner{
		Output:       "synthesis",
		NumTurns:     12,
		TotalCostUSD: &cost,
		Hook: func(req runtime.RunRequest) {
			// Simulate experts writing turn files and a summary.
			turns := filepath.Join(req.Dir, "shared", "turns")
			os.WriteFile(filepath.Join(turns, "round1_physicist.md"), []byte("waves"), 0o644)
			os.WriteFile(filepath.Join(turns, "round2_physicist.md"), []byte("particles"), 0o644)
			os.WriteFile(filepath.Join(req.Dir, "shared", "discussion_summary.md"), []byte("both"), 0o644)
		},
	}
	o, store, pub := newOrchestrator(t, runner)
	created, err := store.Create("Light", "wave or particle", 2, []string{"physicist"})
	if err != nil {
		t.Fatal(err)
	}

	started, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.RoundtableStatus != models.RoundtableRunning {
		t.Fatalf("status after start = %q", started.RoundtableStatus)
	}
	o.Jobs.Wait()

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RoundtableStatus != models.RoundtableCompleted {
		t.Fatalf("terminal status = %q", got.RoundtableStatus)
	}
	res := got.RoundtableResult
	if res == nil {
		t.Fatal("result missing")
	}
	if !strings.Contains(res.DiscussionHistory, "## Round 1 - physicist") || !strings.Contains(res.DiscussionHistory, "waves") {
		t.Fatalf("transcript not captured:\n%s", res.DiscussionHistory)
	}
	if res.DiscussionSummary != "both" || res.TurnsCount != 12 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CostUSD == nil || *res.CostUSD != 0.5 {
		t.Fatalf("cost: %v", res.CostUSD)
	}
	if !pub.has("roundtable_started") || !pub.has("roundtable_completed") {
		t.Fatalf("events: %v", pub.events)
	}

	// Expert roles were seeded and the moderator skill rendered.
	ws, _ := workspace.TopicDirChecked(store.Base(), created.ID)
	if _, err := os.Stat(workspace.RolePath(ws, "physicist")); err != nil {
		t.Fatalf("role not seeded: %v", err)
	}
	if _, err := os.Stat(workspace.ModeratorSkillPath(ws)); err != nil {
		t.Fatalf("moderator skill not written: %v", err)
	}
}

func TestStartRejectsSecondRun(t *testing.T) {
	block := make(chan struct{})
	runner := runtime.StubRunner{
		Output: "ok",
		Hook:   func(runtime.RunRequest) { <-block },
	}
	o, store, _ := newOrchestrator(t, runner)
	created, err := store.Create("T", "", 1, []string{"physicist"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); !errors.Is(err, topics.ErrAlreadyRunning) {
		t.Fatalf("second start: want ErrAlreadyRunning, got %v", err)
	}
	close(block)
	o.Jobs.Wait()

	// After completion a restart is allowed again.
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	o.Jobs.Wait()
}

func TestStartWithoutExpertsFails(t *testing.T) {
	o, store, _ := newOrchestrator(t, runtime.StubRunner{})
	created, err := store.Create("T", "", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); !errors.Is(err, ErrNoExperts) {
		t.Fatalf("want ErrNoExperts, got %v", err)
	}
	got, _ := store.Get(created.ID)
	if got.RoundtableStatus != models.RoundtablePending {
		t.Fatalf("failed start must not change status: %q", got.RoundtableStatus)
	}
}

func TestRunnerFailureKeepsPartialTranscript(t *testing.T) {
	runner := runtime.StubRunner{
		Err: errors.New("model exploded"),
		Hook: func(req runtime.RunRequest) {
			turns := filepath.Join(req.Dir, "shared", "turns")
			os.WriteFile(filepath.Join(turns, "round1_physicist.md"), []byte("partial"), 0o644)
		},
	}
	o, store, pub := newOrchestrator(t, runner)
	created, err := store.Create("T", "", 1, []string{"physicist"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); err != nil {
		t.Fatal(err)
	}
	o.Jobs.Wait()

	got, _ := store.Get(created.ID)
	if got.RoundtableStatus != models.RoundtableFailed {
		t.Fatalf("status = %q", got.RoundtableStatus)
	}
	if got.RoundtableResult != nil {
		t.Fatal("failed run must not attach a result")
	}
	if !pub.has("roundtable_failed") {
		t.Fatalf("events: %v", pub.events)
	}
	// The partial transcript stays on disk.
	ws, _ := workspace.TopicDirChecked(store.Base(), created.ID)
	if _, err := os.Stat(filepath.Join(workspace.TurnsDir(ws), "round1_physicist.md")); err != nil {
		t.Fatalf("partial turn file lost: %v", err)
	}
}

func TestRunRequestShape(t *testing.T) {
	var captured runtime.RunRequest
	runner := runtime.StubRunner{
		Output: "ok",
		Hook:   func(req runtime.RunRequest) { captured = req },
	}
	o, store, _ := newOrchestrator(t, runner)
	o.Env = map[string]string{"ANTHROPIC_API_KEY": "k"}
	created, err := store.Create("T", "", 2, []string{"physicist", "biologist"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{MaxTurns: 7, MaxBudgetUSD: 1.25}); err != nil {
		t.Fatal(err)
	}
	o.Jobs.Wait()

	if captured.MaxTurns != 7 || captured.MaxBudgetUSD != 1.25 {
		t.Fatalf("caps not applied: %+v", captured)
	}
	want := []string{"Read", "Write", "Glob", "Task"}
	if len(captured.AllowedTools) != len(want) {
		t.Fatalf("tools = %v", captured.AllowedTools)
	}
	for i, tool := range want {
		if captured.AllowedTools[i] != tool {
			t.Fatalf("tools = %v", captured.AllowedTools)
		}
	}
	if len(captured.Agents) != 2 {
		t.Fatalf("agents = %v", captured.Agents)
	}
	if captured.Env["ANTHROPIC_API_KEY"] != "k" {
		t.Fatalf("env not passed: %v", captured.Env)
	}
	if !strings.Contains(captured.Prompt, "moderator_skill.md") {
		t.Fatalf("prompt = %q", captured.Prompt)
	}
}

func TestDefaultCaps(t *testing.T) {
	var captured runtime.RunRequest
	runner := runtime.StubRunner{Output: "ok", Hook: func(req runtime.RunRequest) { captured = req }}
	o, store, _ := newOrchestrator(t, runner)
	created, _ := store.Create("T", "", 1, []string{"a"})
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); err != nil {
		t.Fatal(err)
	}
	o.Jobs.Wait()
	if captured.MaxTurns != models.DefaultRoundtableMaxTurns || captured.MaxBudgetUSD != models.DefaultRoundtableBudgetUSD {
		t.Fatalf("default caps not applied: %+v", captured)
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	return nil
}

func TestTerminalOutcomeNotifies(t *testing.T) {
	o, store, _ := newOrchestrator(t, runtime.StubRunner{Output: "ok", NumTurns: 3})
	notifier := &recordingNotifier{}
	o.Notifier = notifier
	created, _ := store.Create("Tides", "", 1, []string{"physicist"})
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); err != nil {
		t.Fatal(err)
	}
	o.Jobs.Wait()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.messages) != 1 {
		t.Fatalf("messages: %v", notifier.messages)
	}
	if !strings.Contains(notifier.messages[0], "Tides") || !strings.Contains(notifier.messages[0], "completed") {
		t.Fatalf("message: %q", notifier.messages[0])
	}
}

func TestStatusWhileRunningReportsProgress(t *testing.T) {
	release := make(chan struct{})
	running := make(chan struct{})
	runner := runtime.StubRunner{
		Output: "ok",
		Hook: func(req runtime.RunRequest) {
			turns := filepath.Join(req.Dir, "shared", "turns")
			os.WriteFile(filepath.Join(turns, "round1_physicist.md"), []byte("x"), 0o644)
			close(running)
			<-release
		},
	}
	o, store, _ := newOrchestrator(t, runner)
	created, err := store.Create("T", "", 2, []string{"physicist"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Start(context.Background(), created.ID, models.StartRoundtableRequest{}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("runner never started")
	}

	st, err := o.Status(created.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != models.RoundtableRunning {
		t.Fatalf("status = %q", st.Status)
	}
	if st.Progress == nil || st.Progress.CompletedTurns != 1 || st.Progress.CurrentRound != 1 {
		t.Fatalf("progress = %+v", st.Progress)
	}
	close(release)
	o.Jobs.Wait()

	st, err = o.Status(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != models.RoundtableCompleted || st.Progress != nil {
		t.Fatalf("terminal status response = %+v", st)
	}
	if st.Result == nil {
		t.Fatal("terminal status missing result")
	}
}
