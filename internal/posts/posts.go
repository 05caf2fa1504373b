// Package posts is the file-backed post store for a topic workspace. Each
// post lives in posts/<timestamp>_<id>.json; the fixed-width timestamp prefix
// makes directory listing order equal chronological order, so no index is
// kept.
package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no post with the requested id exists.
var ErrNotFound = errors.New("post not found")

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ParseMentions returns every @name token in body, in order of appearance.
// Duplicates are kept.
func ParseMentions(body string) []string {
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	return out
}

// New builds a post with a fresh id, parsed mentions, and the current
// timestamp. It is not persisted until Save is called.
func New(topicID, author, authorType, body string) models.Post {
	return models.Post{
		ID:         uuid.NewString(),
		TopicID:    topicID,
		Author:     author,
		AuthorType: authorType,
		Body:       body,
		Mentions:   ParseMentions(body),
		Status:     models.PostCompleted,
		CreatedAt:  models.NowISO(),
	}
}

// Filename derives the sortable filename for a (created_at, id) pair.
// Characters unsafe in filenames are replaced; the mapping is deterministic,
// which is what allows a rewrite of the same post to land on the same file.
func Filename(createdAt, id string) string {
	safe := strings.NewReplacer(":", "-", "+", "p").Replace(createdAt)
	return safe + "_" + id + ".json"
}

// Save writes a post to its workspace file, fully overwriting any previous
// content for the same (created_at, id) pair. This is what enables the
// pending-placeholder replacement pattern: same key, new content, one file.
func Save(ws string, post models.Post) (string, error) {
	dir := workspace.PostsDir(ws)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create posts dir: %w", err)
	}
	path := filepath.Join(dir, Filename(post.CreatedAt, post.ID))
	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write post: %w", err)
	}
	slog.Debug("saved post", "post_id", post.ID, "status", post.Status, "path", path)
	return path, nil
}

// LoadAll returns every post in the workspace in chronological (filename)
// order. Corrupt entries are logged and skipped; they never abort the batch.
func LoadAll(ws string) []models.Post {
	dir := workspace.PostsDir(ws)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []models.Post
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("skipping unreadable post file", "file", name, "err", err)
			continue
		}
		var p models.Post
		if err := json.Unmarshal(b, &p); err != nil {
			slog.Warn("skipping corrupt post file", "file", name, "err", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// LoadByID finds a post by scanning the directory for the id suffix.
// O(n) over the posts of one topic, which stays in the hundreds in practice.
func LoadByID(ws, postID string) (models.Post, error) {
	dir := workspace.PostsDir(ws)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return models.Post{}, ErrNotFound
	}
	suffix := "_" + postID + ".json"
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return models.Post{}, fmt.Errorf("read post: %w", err)
		}
		var p models.Post
		if err := json.Unmarshal(b, &p); err != nil {
			return models.Post{}, fmt.Errorf("decode post %s: %w", e.Name(), err)
		}
		return p, nil
	}
	return models.Post{}, ErrNotFound
}
