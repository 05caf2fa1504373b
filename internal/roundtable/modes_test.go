package roundtable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

func modesWithMeta(t *testing.T, meta string, prompts map[string]string) *Modes {
	t.Helper()
	skills := t.TempDir()
	dir := filepath.Join(skills, "moderator")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, content := range prompts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return LoadModes(skills)
}

const testMeta = `{
  "modes": {
    "standard": {"id": "standard", "name": "Standard", "description": "Balanced debate", "num_rounds": 5, "convergence_strategy": "synthesis", "prompt_file": "standard.md"},
    "debate": {"id": "debate", "name": "Debate", "description": "Adversarial", "num_rounds": 3, "convergence_strategy": "vote", "prompt_file": "debate.md"},
    "broken": {"id": "broken", "name": "Broken"}
  }
}`

func TestLoadModesSkipsInvalid(t *testing.T) {
	m := modesWithMeta(t, testMeta, nil)
	list := m.List()
	if len(list) != 2 {
		t.Fatalf("want 2 modes, got %+v", list)
	}
	if list[0].ID != "debate" || list[1].ID != "standard" {
		t.Fatalf("not sorted by id: %+v", list)
	}
	if _, ok := m.Get("broken"); ok {
		t.Fatal("invalid mode should be skipped")
	}
}

func TestLoadModesMissingDescriptor(t *testing.T) {
	m := LoadModes(t.TempDir())
	if len(m.List()) != 0 {
		t.Fatalf("want no modes, got %+v", m.List())
	}
}

func TestModeConfigRoundtrip(t *testing.T) {
	ws, err := workspace.EnsureTopicWorkspace(t.TempDir(), "t1")
	if err != nil {
		t.Fatal(err)
	}

	got := LoadModeConfig(ws)
	if got.ModeID != DefaultModeID || got.NumRounds != models.DefaultNumRounds {
		t.Fatalf("default config = %+v", got)
	}

	want := models.ModeratorModeConfig{ModeID: "debate", NumRounds: 3}
	if err := SaveModeConfig(ws, want); err != nil {
		t.Fatalf("SaveModeConfig: %v", err)
	}
	got = LoadModeConfig(ws)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPrepareModeratorSkillFillsPlaceholders(t *testing.T) {
	prompt := "Topic: {topic}\nDir: {ws_abs}\nExperts ({num_experts}): {expert_names_str}\nRounds: {num_rounds}\nKeep {unknown} intact.\n"
	m := modesWithMeta(t, testMeta, map[string]string{"standard.md": prompt})
	ws, err := workspace.EnsureTopicWorkspace(t.TempDir(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	topic := models.Topic{ID: "t1", Title: "Dark matter", NumRounds: 5}
	cfg := models.ModeratorModeConfig{ModeID: "standard", NumRounds: 4}

	rendered, err := m.PrepareModeratorSkill(ws, topic, cfg, []string{"physicist", "biologist"})
	if err != nil {
		t.Fatalf("PrepareModeratorSkill: %v", err)
	}
	absWS, _ := filepath.Abs(ws)
	for _, want := range []string{
		"Topic: Dark matter",
		"Dir: " + absWS,
		"Experts (2): physicist, biologist",
		"Rounds: 4",
		"Keep {unknown} intact.",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered skill missing %q:\n%s", want, rendered)
		}
	}

	b, err := os.ReadFile(workspace.ModeratorSkillPath(ws))
	if err != nil {
		t.Fatalf("skill file not written: %v", err)
	}
	if string(b) != rendered {
		t.Fatal("file content differs from returned content")
	}
}

func TestPrepareModeratorSkillCustomMode(t *testing.T) {
	m := modesWithMeta(t, testMeta, nil)
	ws, err := workspace.EnsureTopicWorkspace(t.TempDir(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	cfg := models.ModeratorModeConfig{ModeID: CustomModeID, NumRounds: 2, CustomPrompt: "Discuss {topic} freely."}

	rendered, err := m.PrepareModeratorSkill(ws, models.Topic{ID: "t1", Title: "X"}, cfg, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if rendered != "Discuss X freely." {
		t.Fatalf("custom prompt not used: %q", rendered)
	}
}

func TestPrepareModeratorSkillUnknownModeFallsBack(t *testing.T) {
	m := modesWithMeta(t, testMeta, map[string]string{"standard.md": "standard for {topic}"})
	ws, err := workspace.EnsureTopicWorkspace(t.TempDir(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	cfg := models.ModeratorModeConfig{ModeID: "nope", NumRounds: 1}

	rendered, err := m.PrepareModeratorSkill(ws, models.Topic{ID: "t1", Title: "Y"}, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rendered != "standard for Y" {
		t.Fatalf("unknown mode should use standard template: %q", rendered)
	}
}

func TestPrepareModeratorSkillBuiltInTemplate(t *testing.T) {
	m := LoadModes(t.TempDir())
	ws, err := workspace.EnsureTopicWorkspace(t.TempDir(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	rendered, err := m.PrepareModeratorSkill(ws, models.Topic{ID: "t1", Title: "Z"}, LoadModeConfig(ws), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rendered, "Topic: Z") || !strings.Contains(rendered, "a, b") {
		t.Fatalf("built-in template not rendered: %q", rendered)
	}
}
