package posts

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	ws, err := workspace.EnsureTopicWorkspace(t.TempDir(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	return ws
}

func TestParseMentions(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{"@bob please explain X and @carol too", []string{"bob", "carol"}},
		{"no mentions here", nil},
		{"@bob and @bob again", []string{"bob", "bob"}},
		{"email me a@b is not clean but matches b", []string{"b"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := ParseMentions(tt.body); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseMentions(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestSaveAndLoadAll_chronologicalOrder(t *testing.T) {
	ws := newWorkspace(t)

	first := models.Post{ID: "aaa", TopicID: "t1", Author: "alice", AuthorType: models.AuthorHuman,
		Body: "first", Status: models.PostCompleted, CreatedAt: "2025-03-01T10:00:00.000000Z"}
	second := models.Post{ID: "bbb", TopicID: "t1", Author: "bob", AuthorType: models.AuthorHuman,
		Body: "second", Status: models.PostCompleted, CreatedAt: "2025-03-01T10:00:01.000000Z"}

	// Save out of order; listing must still be chronological.
	if _, err := Save(ws, second); err != nil {
		t.Fatal(err)
	}
	if _, err := Save(ws, first); err != nil {
		t.Fatal(err)
	}

	got := LoadAll(ws)
	if len(got) != 2 {
		t.Fatalf("LoadAll returned %d posts, want 2", len(got))
	}
	if got[0].ID != "aaa" || got[1].ID != "bbb" {
		t.Fatalf("posts out of order: %q then %q", got[0].ID, got[1].ID)
	}
}

func TestSave_overwriteSameKeyLeavesOneFile(t *testing.T) {
	ws := newWorkspace(t)

	pending := models.Post{ID: "r1", TopicID: "t1", Author: "physicist",
		AuthorType: models.AuthorAgent, Body: "", Status: models.PostPending,
		CreatedAt: "2025-03-01T10:00:00.000000Z"}
	if _, err := Save(ws, pending); err != nil {
		t.Fatal(err)
	}

	completed := pending
	completed.Body = "here is the answer"
	completed.Status = models.PostCompleted
	if _, err := Save(ws, completed); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(workspace.PostsDir(ws))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file after overwrite, got %d", len(entries))
	}

	got, err := LoadByID(ws, "r1")
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	if got.Status != models.PostCompleted || got.Body != "here is the answer" {
		t.Fatalf("overwrite not visible: %+v", got)
	}
	if got.CreatedAt != pending.CreatedAt {
		t.Fatalf("created_at changed across overwrite: %q vs %q", got.CreatedAt, pending.CreatedAt)
	}
}

func TestLoadAll_skipsCorruptFiles(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := Save(ws, New("t1", "alice", models.AuthorHuman, "hello")); err != nil {
		t.Fatal(err)
	}
	corrupt := filepath.Join(workspace.PostsDir(ws), "2025-01-01T00-00-00.000000Z_x.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := LoadAll(ws)
	if len(got) != 1 {
		t.Fatalf("LoadAll = %d posts, want 1 (corrupt skipped)", len(got))
	}
}

func TestLoadByID_notFound(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := LoadByID(ws, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestNew_populatesFields(t *testing.T) {
	p := New("t1", "alice", models.AuthorHuman, "@bob hi")
	if p.ID == "" || p.CreatedAt == "" {
		t.Fatalf("New left id or created_at empty: %+v", p)
	}
	if !reflect.DeepEqual(p.Mentions, []string{"bob"}) {
		t.Fatalf("mentions = %v", p.Mentions)
	}
	if p.Status != models.PostCompleted {
		t.Fatalf("status = %q", p.Status)
	}
}
