package roundtable

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

// DefaultModeID is used when a topic has no moderator mode configured or
// names a mode that no longer exists.
const DefaultModeID = "standard"

// CustomModeID selects a caller-supplied prompt instead of a preset skill.
const CustomModeID = "custom"

// defaultSkillTemplate is the built-in moderator skill used when the skills
// directory carries no template for the selected mode.
const defaultSkillTemplate = `# Moderator

You moderate a roundtable discussion on the topic below among {num_experts}
experts ({expert_names_str}) over {num_rounds} rounds.

Topic: {topic}

Working directory: {ws_abs}

For each round, delegate to every expert sub-agent in turn. Each expert must
write their contribution to shared/turns/round<N>_<expert>.md. After the final
round, write a synthesis of the discussion to shared/discussion_summary.md.
`

// Modes is the registry of moderator discussion modes loaded from
// <skillsDir>/moderator/meta.json.
type Modes struct {
	mu        sync.RWMutex
	skillsDir string
	modes     map[string]modeSpec
}

type modeSpec struct {
	models.ModeratorMode
	PromptFile string
}

// LoadModes reads the moderator mode descriptor. A missing or malformed
// descriptor degrades to the built-in standard mode only.
func LoadModes(skillsDir string) *Modes {
	m := &Modes{skillsDir: skillsDir, modes: map[string]modeSpec{}}
	if err := m.Reload(); err != nil {
		slog.Warn("moderator modes unavailable, using built-in default", "err", err)
	}
	return m
}

// Reload re-reads the descriptor file. Entries missing required fields are
// skipped with a warning.
func (m *Modes) Reload() error {
	metaPath := filepath.Join(m.skillsDir, "moderator", "meta.json")
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read moderator modes descriptor: %w", err)
	}
	var raw struct {
		Modes map[string]struct {
			ID                  string `json:"id"`
			Name                string `json:"name"`
			Description         string `json:"description"`
			NumRounds           int    `json:"num_rounds"`
			ConvergenceStrategy string `json:"convergence_strategy"`
			PromptFile          string `json:"prompt_file"`
		} `json:"modes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode moderator modes descriptor: %w", err)
	}

	modes := make(map[string]modeSpec, len(raw.Modes))
	for id, e := range raw.Modes {
		if e.ID == "" || e.Name == "" || e.Description == "" || e.NumRounds <= 0 || e.ConvergenceStrategy == "" {
			slog.Warn("skipping invalid moderator mode: missing required fields", "mode", id)
			continue
		}
		modes[id] = modeSpec{
			ModeratorMode: models.ModeratorMode{
				ID:                  e.ID,
				Name:                e.Name,
				Description:         e.Description,
				NumRounds:           e.NumRounds,
				ConvergenceStrategy: e.ConvergenceStrategy,
			},
			PromptFile: e.PromptFile,
		}
	}

	m.mu.Lock()
	m.modes = modes
	m.mu.Unlock()
	return nil
}

// List returns the available modes sorted by id.
func (m *Modes) List() []models.ModeratorMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ModeratorMode, 0, len(m.modes))
	for _, s := range m.modes {
		out = append(out, s.ModeratorMode)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a mode by id.
func (m *Modes) Get(id string) (models.ModeratorMode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.modes[id]
	return s.ModeratorMode, ok
}

func (m *Modes) promptFile(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.modes[id]
	if !ok || s.PromptFile == "" {
		return ""
	}
	return filepath.Join(m.skillsDir, "moderator", s.PromptFile)
}

// LoadModeConfig reads a topic's moderator mode selection. A missing or
// unreadable config yields the standard default.
func LoadModeConfig(ws string) models.ModeratorModeConfig {
	def := models.ModeratorModeConfig{ModeID: DefaultModeID, NumRounds: models.DefaultNumRounds}
	b, err := os.ReadFile(workspace.ModeratorModePath(ws))
	if err != nil {
		return def
	}
	var cfg models.ModeratorModeConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		slog.Warn("invalid moderator mode config, using default", "err", err)
		return def
	}
	if cfg.ModeID == "" {
		cfg.ModeID = DefaultModeID
	}
	if cfg.NumRounds <= 0 {
		cfg.NumRounds = models.DefaultNumRounds
	}
	return cfg
}

// SaveModeConfig persists a topic's moderator mode selection.
func SaveModeConfig(ws string, cfg models.ModeratorModeConfig) error {
	path := workspace.ModeratorModePath(ws)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal moderator mode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write moderator mode config: %w", err)
	}
	return nil
}

// PrepareModeratorSkill renders the moderator skill for a run into
// config/moderator_skill.md and returns its content. The template comes from
// the selected mode's prompt file (custom mode uses the topic's custom
// prompt); an unknown mode falls back to standard, and a missing template
// falls back to the built-in one. Placeholders {topic}, {ws_abs},
// {expert_names_str}, {num_experts}, and {num_rounds} are filled; anything
// else in braces is left intact.
func (m *Modes) PrepareModeratorSkill(ws string, topic models.Topic, cfg models.ModeratorModeConfig, expertNames []string) (string, error) {
	tmpl := m.skillTemplate(cfg)

	numRounds := cfg.NumRounds
	if numRounds <= 0 {
		numRounds = topic.NumRounds
	}
	if numRounds <= 0 {
		numRounds = models.DefaultNumRounds
	}
	absWS, err := filepath.Abs(ws)
	if err != nil {
		absWS = ws
	}
	rendered := strings.NewReplacer(
		"{topic}", topic.Title,
		"{ws_abs}", absWS,
		"{expert_names_str}", strings.Join(expertNames, ", "),
		"{num_experts}", strconv.Itoa(len(expertNames)),
		"{num_rounds}", strconv.Itoa(numRounds),
	).Replace(tmpl)

	path := workspace.ModeratorSkillPath(ws)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write moderator skill: %w", err)
	}
	return rendered, nil
}

func (m *Modes) skillTemplate(cfg models.ModeratorModeConfig) string {
	if cfg.ModeID == CustomModeID && strings.TrimSpace(cfg.CustomPrompt) != "" {
		return cfg.CustomPrompt
	}
	id := cfg.ModeID
	if _, ok := m.Get(id); !ok && id != DefaultModeID {
		slog.Warn("unknown moderator mode, falling back to standard", "mode", id)
		id = DefaultModeID
	}
	if path := m.promptFile(id); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			return string(b)
		}
		slog.Warn("moderator prompt file missing, using built-in template", "path", path)
	}
	return defaultSkillTemplate
}

// ModeratorPrompt is the short user prompt handed to the runner; the real
// instructions live in the rendered skill file inside the workspace.
func ModeratorPrompt() string {
	return "Read config/moderator_skill.md in your working directory and follow it to moderate the roundtable discussion."
}
