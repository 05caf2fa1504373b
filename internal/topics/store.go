// Package topics manages topic lifecycle state. The workspace is the source
// of truth: every topic's record lives at <workspace>/topic.json and the
// in-memory map is a cache rebuilt from disk at startup and refreshed by a
// periodic sync, so externally created or deleted topic directories are
// picked up without a restart.
package topics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("topic not found")
	ErrAlreadyRunning = errors.New("roundtable already running")
)

// Store keeps topic records in memory with write-through persistence to each
// topic's workspace.
type Store struct {
	mu     sync.RWMutex
	base   string // workspace base directory
	topics map[string]*models.Topic
	mtimes map[string]time.Time // topic.json mtime as of the last read or write
}

func NewStore(base string) *Store {
	return &Store{
		base:   base,
		topics: map[string]*models.Topic{},
		mtimes: map[string]time.Time{},
	}
}

// Base returns the workspace base directory.
func (s *Store) Base() string { return s.base }

// Load scans the topics directory and rebuilds the in-memory map. Any topic
// found in roundtable state "running" is a job orphaned by a previous process
// and is marked failed, persisted back to disk.
func (s *Store) Load() error {
	entries, err := os.ReadDir(workspace.TopicsDir(s.base))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read topics dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = map[string]*models.Topic{}
	s.mtimes = map[string]time.Time{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := readTopicFile(s.base, e.Name())
		if err != nil {
			slog.Warn("skipping unreadable topic record", "topic", e.Name(), "err", err)
			continue
		}
		if t.RoundtableStatus == models.RoundtableRunning {
			// Only the status flips; every other field, including
			// updated_at, survives the restart untouched.
			slog.Warn("marking orphaned roundtable as failed", "topic", t.ID)
			t.RoundtableStatus = models.RoundtableFailed
			if err := writeTopicFile(s.base, t); err != nil {
				slog.Error("failed to persist orphaned roundtable state", "topic", t.ID, "err", err)
			}
		}
		s.topics[t.ID] = t
		s.mtimes[t.ID] = topicFileMtime(s.base, t.ID)
	}
	slog.Info("topics loaded", "count", len(s.topics))
	return nil
}

// Create makes a new topic with a fresh workspace and persists its record.
func (s *Store) Create(title, body string, numRounds int, expertNames []string) (models.Topic, error) {
	if numRounds <= 0 {
		numRounds = models.DefaultNumRounds
	}
	now := models.NowISO()
	t := &models.Topic{
		ID:               uuid.NewString(),
		Title:            title,
		Body:             body,
		Status:           models.TopicOpen,
		NumRounds:        numRounds,
		ExpertNames:      append([]string(nil), expertNames...),
		RoundtableStatus: models.RoundtablePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := workspace.EnsureTopicWorkspace(s.base, t.ID); err != nil {
		return models.Topic{}, err
	}
	if err := writeTopicFile(s.base, t); err != nil {
		return models.Topic{}, err
	}
	s.mu.Lock()
	s.topics[t.ID] = t
	s.mtimes[t.ID] = topicFileMtime(s.base, t.ID)
	s.mu.Unlock()
	return *t, nil
}

// Get returns a copy of a topic record.
func (s *Store) Get(id string) (models.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return models.Topic{}, ErrNotFound
	}
	return *t, nil
}

// List returns copies of all topics, newest first.
func (s *Store) List() []models.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, *t)
	}
	sortTopics(out)
	return out
}

// Update applies fn to a topic under the lock and persists the result.
func (s *Store) Update(id string, fn func(*models.Topic)) (models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return models.Topic{}, ErrNotFound
	}
	fn(t)
	t.UpdatedAt = models.NowISO()
	if err := writeTopicFile(s.base, t); err != nil {
		return models.Topic{}, err
	}
	s.mtimes[id] = topicFileMtime(s.base, id)
	return *t, nil
}

// Close marks a topic closed.
func (s *Store) Close(id string) (models.Topic, error) {
	return s.Update(id, func(t *models.Topic) {
		t.Status = models.TopicClosed
	})
}

// StartRoundtable transitions a topic's roundtable to running. At most one
// roundtable runs per topic: a topic already running is rejected, while
// pending, completed, and failed topics may (re)start.
func (s *Store) StartRoundtable(id string) (models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return models.Topic{}, ErrNotFound
	}
	if t.RoundtableStatus == models.RoundtableRunning {
		return models.Topic{}, ErrAlreadyRunning
	}
	t.RoundtableStatus = models.RoundtableRunning
	t.RoundtableResult = nil
	t.UpdatedAt = models.NowISO()
	if err := writeTopicFile(s.base, t); err != nil {
		return models.Topic{}, err
	}
	s.mtimes[id] = topicFileMtime(s.base, id)
	return *t, nil
}

// FinishRoundtable records a roundtable's terminal state. result may be nil
// on failure; any partial transcript stays on disk in the workspace.
func (s *Store) FinishRoundtable(id, status string, result *models.RoundtableResult) (models.Topic, error) {
	return s.Update(id, func(t *models.Topic) {
		t.RoundtableStatus = status
		t.RoundtableResult = result
	})
}

// Sync reconciles the in-memory map with the topics directory: topic
// directories created externally are inserted, vanished ones evicted, and a
// surviving topic whose topic.json mtime moved since the last read or write
// is reloaded, so external edits are picked up between ticks.
func (s *Store) Sync() {
	entries, err := os.ReadDir(workspace.TopicsDir(s.base))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("workspace sync: read topics dir", "err", err)
		}
		return
	}
	onDisk := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			onDisk[e.Name()] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range onDisk {
		if _, ok := s.topics[id]; ok {
			if mt := topicFileMtime(s.base, id); !mt.Equal(s.mtimes[id]) {
				t, err := readTopicFile(s.base, id)
				if err != nil {
					continue
				}
				slog.Info("workspace sync: reloaded modified topic", "topic", id)
				s.topics[id] = t
				s.mtimes[id] = mt
			}
			continue
		}
		t, err := readTopicFile(s.base, id)
		if err != nil {
			continue
		}
		slog.Info("workspace sync: discovered topic", "topic", id)
		s.topics[id] = t
		s.mtimes[id] = topicFileMtime(s.base, id)
	}
	for id := range s.topics {
		if !onDisk[id] {
			slog.Info("workspace sync: topic removed from disk", "topic", id)
			delete(s.topics, id)
			delete(s.mtimes, id)
		}
	}
}

// RunSync runs Sync on a fixed interval until ctx is cancelled.
func (s *Store) RunSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync()
		}
	}
}

func readTopicFile(base, id string) (*models.Topic, error) {
	ws, err := workspace.TopicDirChecked(base, id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(workspace.TopicFilePath(ws))
	if err != nil {
		return nil, err
	}
	var t models.Topic
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode topic.json: %w", err)
	}
	if t.ID == "" {
		t.ID = id
	}
	return &t, nil
}

func writeTopicFile(base string, t *models.Topic) error {
	ws, err := workspace.TopicDirChecked(base, t.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal topic.json: %w", err)
	}
	if err := os.WriteFile(workspace.TopicFilePath(ws), data, 0o644); err != nil {
		return fmt.Errorf("write topic.json: %w", err)
	}
	return nil
}

// topicFileMtime returns topic.json's modification time, zero when the file
// cannot be statted.
func topicFileMtime(base, id string) time.Time {
	ws, err := workspace.TopicDirChecked(base, id)
	if err != nil {
		return time.Time{}
	}
	fi, err := os.Stat(workspace.TopicFilePath(ws))
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func sortTopics(ts []models.Topic) {
	// CreatedAt is a fixed-width timestamp, so string comparison is
	// chronological.
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt > ts[j].CreatedAt })
}
