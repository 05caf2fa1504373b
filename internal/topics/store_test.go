package topics

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore(t.TempDir())
	created, err := s.Create("Quantum gravity", "Is it real?", 0, []string{"physicist"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.NumRounds != models.DefaultNumRounds {
		t.Fatalf("num_rounds not defaulted: %d", created.NumRounds)
	}
	if created.Status != models.TopicOpen || created.RoundtableStatus != models.RoundtablePending {
		t.Fatalf("unexpected initial state: %+v", created)
	}

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Quantum gravity" {
		t.Fatalf("Get returned %+v", got)
	}

	ws, err := workspace.TopicDirChecked(s.Base(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(workspace.TopicFilePath(ws)); err != nil {
		t.Fatalf("topic.json not persisted: %v", err)
	}
	if _, err := os.Stat(workspace.TurnsDir(ws)); err != nil {
		t.Fatalf("workspace skeleton missing: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStartRoundtableGuard(t *testing.T) {
	s := NewStore(t.TempDir())
	created, err := s.Create("T", "B", 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.StartRoundtable(created.ID); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := s.StartRoundtable(created.ID); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: want ErrAlreadyRunning, got %v", err)
	}

	cost := 1.0
	res := &models.RoundtableResult{TurnsCount: 10, CostUSD: &cost, CompletedAt: models.NowISO()}
	if _, err := s.FinishRoundtable(created.ID, models.RoundtableCompleted, res); err != nil {
		t.Fatal(err)
	}
	// Restart after completion is allowed and clears the previous result.
	restarted, err := s.StartRoundtable(created.ID)
	if err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	if restarted.RoundtableResult != nil {
		t.Fatal("restart should clear previous result")
	}
}

func TestLoadMarksOrphanedRunningAsFailed(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)
	created, err := s.Create("T", "B", 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	running, err := s.StartRoundtable(created.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a restart: a fresh store loading the same workspace.
	s2 := NewStore(base)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := s2.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RoundtableStatus != models.RoundtableFailed {
		t.Fatalf("orphaned running not reconciled: %q", got.RoundtableStatus)
	}
	// Only the status flips; nothing else moves, timestamps included.
	want := running
	want.RoundtableStatus = models.RoundtableFailed
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("other fields altered on restart reset:\n got %+v\nwant %+v", got, want)
	}

	// The reconciliation must be persisted, not just in memory.
	s3 := NewStore(base)
	if err := s3.Load(); err != nil {
		t.Fatal(err)
	}
	got, _ = s3.Get(created.ID)
	if got.RoundtableStatus != models.RoundtableFailed {
		t.Fatalf("reconciliation not persisted: %q", got.RoundtableStatus)
	}
}

func TestSyncDiscoversAndEvicts(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)
	created, err := s.Create("T", "B", 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	// An externally created topic directory with a valid record.
	other := NewStore(base)
	if err := other.Load(); err != nil {
		t.Fatal(err)
	}
	external, err := other.Create("External", "made elsewhere", 2, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.Sync()
	if _, err := s.Get(external.ID); err != nil {
		t.Fatalf("sync did not discover external topic: %v", err)
	}

	ws, _ := workspace.TopicDirChecked(base, created.ID)
	if err := os.RemoveAll(ws); err != nil {
		t.Fatal(err)
	}
	s.Sync()
	if _, err := s.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sync did not evict removed topic: %v", err)
	}
}

func TestSyncReloadsModifiedTopicFile(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)
	created, err := s.Create("Before", "B", 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	// An external edit to topic.json between sync ticks.
	ws, err := workspace.TopicDirChecked(base, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	path := workspace.TopicFilePath(ws)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(b), `"Before"`, `"After"`, 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	// Push the mtime past filesystem timestamp granularity.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	s.Sync()
	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "After" {
		t.Fatalf("external edit not picked up: %+v", got)
	}

	// A second sync with no further edits changes nothing.
	s.Sync()
	got, _ = s.Get(created.ID)
	if got.Title != "After" {
		t.Fatalf("stable topic reloaded incorrectly: %+v", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := NewStore(t.TempDir())
	a, _ := s.Create("A", "", 1, nil)
	b, _ := s.Create("B", "", 1, nil)
	// Force distinct timestamps by editing the persisted records.
	if _, err := s.Update(a.ID, func(tp *models.Topic) { tp.CreatedAt = "2026-01-01T00:00:00.000000Z" }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(b.ID, func(tp *models.Topic) { tp.CreatedAt = "2026-01-02T00:00:00.000000Z" }); err != nil {
		t.Fatal(err)
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("not newest first: %+v", list)
	}
}

func TestLoadSkipsUnreadableRecords(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)
	good, err := s.Create("Good", "", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	badWS := filepath.Join(base, "topics", "bad-topic")
	if err := os.MkdirAll(badWS, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badWS, "topic.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	s2 := NewStore(base)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s2.Get(good.ID); err != nil {
		t.Fatalf("good topic missing after load: %v", err)
	}
	if _, err := s2.Get("bad-topic"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad topic should be skipped: %v", err)
	}
}
