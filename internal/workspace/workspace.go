// Package workspace owns the per-topic directory layout under
// <base>/topics/<id>/ and derives transcripts and progress from it. The
// filesystem is the single source of truth; nothing here keeps state in
// memory.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidIdentifier is returned for topic or expert ids outside the
	// safe character set.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrPathTraversal is returned when a resolved workspace path escapes
	// the base directory.
	ErrPathTraversal = errors.New("path traversal detected")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateID rejects identifiers that could be used for directory traversal.
// Only alphanumerics, hyphens, and underscores are allowed.
func ValidateID(id string) error {
	if id == "" || !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (only [A-Za-z0-9_-] allowed)", ErrInvalidIdentifier, id)
	}
	return nil
}

// EnsureTopicWorkspace creates the directory skeleton for a topic and returns
// its workspace path. It is idempotent: existing directories and files are
// left untouched. The resolved path must stay inside <base>/topics/; the
// charset check should already guarantee that, but the containment check
// stays as a second line of defense.
func EnsureTopicWorkspace(base, topicID string) (string, error) {
	ws, err := TopicDirChecked(base, topicID)
	if err != nil {
		return "", err
	}

	for _, dir := range []string{
		TurnsDir(ws),
		ConfigDir(ws),
		PostsDir(ws),
		AgentsDir(ws),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create workspace dir: %w", err)
		}
	}
	return ws, nil
}

// TopicDirChecked resolves a topic's workspace path with the same id and
// containment checks as EnsureTopicWorkspace, without creating anything.
func TopicDirChecked(base, topicID string) (string, error) {
	if err := ValidateID(topicID); err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve workspace base: %w", err)
	}
	topicsRoot := filepath.Join(absBase, "topics")
	ws := filepath.Join(topicsRoot, topicID)
	if !strings.HasPrefix(ws, topicsRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: topic %q", ErrPathTraversal, topicID)
	}
	return ws, nil
}

// SeedRole writes a default role.md for an expert only if none exists.
// Existing role files are never overwritten, preserving user edits.
func SeedRole(ws, expertName, content string) error {
	if err := ValidateID(expertName); err != nil {
		return err
	}
	dir := AgentDir(ws, expertName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	path := RolePath(ws, expertName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	slog.Info("seeding default role", "expert", expertName, "path", path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write role file: %w", err)
	}
	return nil
}

var turnPattern = regexp.MustCompile(`^round(\d+)_(.+)$`)

// ParseTurnName extracts (round, expertKey) from a turn file stem such as
// "round2_economist". Returns ok=false for names outside the convention.
func ParseTurnName(filename string) (round int, expertKey string, ok bool) {
	stem := strings.TrimSuffix(filepath.Base(filename), ".md")
	m := turnPattern.FindStringSubmatch(stem)
	if m == nil {
		return 0, "", false
	}
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
	}
	return n, m[2], true
}

// ReadSummary returns shared/discussion_summary.md, or "" if absent.
func ReadSummary(ws string) string {
	b, err := os.ReadFile(SummaryPath(ws))
	if err != nil {
		return ""
	}
	return string(b)
}
