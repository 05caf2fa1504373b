package experts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

// ValidSource reports whether s is one of the recognized roster sources.
func ValidSource(s string) bool {
	switch s {
	case models.SourcePreset, models.SourceCustom, models.SourceAIGenerated:
		return true
	}
	return false
}

type rosterFile struct {
	Experts []models.ExpertEntry `json:"experts"`
}

// LoadRoster reads a topic's roster metadata. A missing or unreadable file
// yields an empty roster, never an error.
func LoadRoster(ws string) []models.ExpertEntry {
	b, err := os.ReadFile(workspace.ExpertsMetadataPath(ws))
	if err != nil {
		return nil
	}
	var f rosterFile
	if err := json.Unmarshal(b, &f); err != nil {
		slog.Error("failed to decode experts metadata", "err", err)
		return nil
	}
	return f.Experts
}

// SaveRoster writes a topic's roster metadata.
func SaveRoster(ws string, entries []models.ExpertEntry) error {
	path := workspace.ExpertsMetadataPath(ws)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(rosterFile{Experts: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal experts metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write experts metadata: %w", err)
	}
	return nil
}

// AddExpert adds or replaces a roster entry and stamps added_at. The entry's
// source must be a recognized variant.
func AddExpert(ws string, entry models.ExpertEntry) error {
	if err := workspace.ValidateID(entry.Name); err != nil {
		return err
	}
	if !ValidSource(entry.Source) {
		return fmt.Errorf("invalid expert source %q", entry.Source)
	}
	if entry.Label == "" {
		entry.Label = entry.Name
	}
	entry.AddedAt = models.NowISO()

	entries := LoadRoster(ws)
	kept := entries[:0]
	for _, e := range entries {
		if e.Name != entry.Name {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)
	return SaveRoster(ws, kept)
}

// RemoveExpert deletes a roster entry by name. This is a pure data
// operation: the caller enforces the "at least one expert remains" rule
// before invoking it, and an already-empty roster is not an error.
func RemoveExpert(ws, name string) error {
	entries := LoadRoster(ws)
	kept := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	return SaveRoster(ws, kept)
}

// DeleteExpert removes an expert from a topic entirely: the agents/<name>/
// directory (role file and any private notes) and the roster entry. The
// directory goes first; listings are driven by role files, so metadata alone
// would keep a deleted expert visible.
func DeleteExpert(ws, name string) error {
	if err := workspace.ValidateID(name); err != nil {
		return err
	}
	if err := os.RemoveAll(workspace.AgentDir(ws, name)); err != nil {
		return fmt.Errorf("remove expert dir: %w", err)
	}
	return RemoveExpert(ws, name)
}

// ListExperts returns the topic's experts by scanning agents/ for role files
// and merging roster metadata, sorted by name. Experts with a directory but
// no metadata entry get defaults with source "unknown" left empty.
func ListExperts(ws string) []models.ExpertEntry {
	metaByName := make(map[string]models.ExpertEntry)
	for _, e := range LoadRoster(ws) {
		metaByName[e.Name] = e
	}

	entries, err := os.ReadDir(workspace.AgentsDir(ws))
	if err != nil {
		return nil
	}
	var out []models.ExpertEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := os.Stat(workspace.RolePath(ws, name)); err != nil {
			continue
		}
		entry, ok := metaByName[name]
		if !ok {
			entry = models.ExpertEntry{Name: name, Label: name}
		}
		entry.RoleFile = filepath.Join("agents", name, "role.md")
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LabelLookup returns a workspace.LabelFunc resolving expert keys with the
// usual precedence: topic roster metadata, then the global registry, then
// the raw key.
func LabelLookup(ws string, reg *Registry) workspace.LabelFunc {
	return func(key string) string {
		for _, e := range LoadRoster(ws) {
			if e.Name == key && e.Label != "" {
				return e.Label
			}
		}
		if reg != nil {
			if spec, ok := reg.Get(key); ok {
				return spec.Label
			}
		}
		return key
	}
}
