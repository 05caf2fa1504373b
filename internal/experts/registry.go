// Package experts resolves expert role definitions and manages the per-topic
// roster. The global registry describes the preset experts shipped in the
// skills directory; each topic workspace can override roles and carry its own
// roster metadata.
package experts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Spec describes one preset expert from the global roster descriptor.
// All fields are required at construction; malformed descriptor entries are
// skipped during load rather than producing partial specs.
type Spec struct {
	Name        string
	SkillFile   string
	Description string
	Label       string
}

// Registry is the global expert roster loaded from
// <skillsDir>/experts/meta.json. A malformed or missing descriptor degrades
// to an empty registry; it never aborts startup.
type Registry struct {
	mu        sync.RWMutex
	skillsDir string
	specs     map[string]Spec
}

// LoadRegistry reads the roster descriptor under skillsDir. Entries missing
// required fields are skipped with a warning.
func LoadRegistry(skillsDir string) *Registry {
	r := &Registry{skillsDir: skillsDir, specs: map[string]Spec{}}
	if err := r.Reload(); err != nil {
		slog.Warn("expert registry unavailable, starting empty", "err", err)
	}
	return r
}

// Reload re-reads the descriptor file, replacing the in-memory specs.
// Callers holding previously returned Specs keep their copies.
func (r *Registry) Reload() error {
	metaPath := filepath.Join(r.skillsDir, "experts", "meta.json")
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read experts descriptor: %w", err)
	}

	var raw struct {
		Experts map[string]struct {
			Name        string `json:"name"`
			SkillFile   string `json:"skill_file"`
			Description string `json:"description"`
			Label       string `json:"label"`
		} `json:"experts"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode experts descriptor: %w", err)
	}

	specs := make(map[string]Spec, len(raw.Experts))
	for name, e := range raw.Experts {
		if e.Name == "" || e.SkillFile == "" || e.Description == "" {
			slog.Warn("skipping invalid expert entry: missing required fields", "expert", name)
			continue
		}
		label := e.Label
		if label == "" {
			label = name
		}
		specs[name] = Spec{Name: e.Name, SkillFile: e.SkillFile, Description: e.Description, Label: label}
	}

	r.mu.Lock()
	r.specs = specs
	r.mu.Unlock()
	return nil
}

// Get returns the spec for a preset expert.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns all preset expert names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SkillPath returns the global skill file for a spec.
func (r *Registry) SkillPath(s Spec) string {
	return filepath.Join(r.skillsDir, "experts", s.SkillFile)
}
