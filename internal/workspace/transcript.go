package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LabelFunc resolves an expert key to its display label. A nil LabelFunc
// leaves keys unresolved.
type LabelFunc func(expertKey string) string

// ReadTranscript builds the discussion transcript from shared/turns/*.md in
// filename order. Each parseable turn gets a heading with the expert's
// resolved label; unparseable names fall back to the raw stem. Returns ""
// when no turns exist. Read-only and idempotent.
func ReadTranscript(ws string, labelFor LabelFunc) string {
	files := listTurnFiles(ws)
	if len(files) == 0 {
		return ""
	}

	var parts []string
	for _, name := range files {
		stem := strings.TrimSuffix(name, ".md")
		var heading string
		if round, key, ok := ParseTurnName(name); ok {
			label := key
			if labelFor != nil {
				label = labelFor(key)
			}
			heading = fmt.Sprintf("## Round %d - %s", round, label)
		} else {
			heading = "## " + stem
		}
		b, err := os.ReadFile(filepath.Join(TurnsDir(ws), name))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(b))
		parts = append(parts, heading+"\n\n"+content+"\n\n---")
	}
	return strings.Join(parts, "\n\n")
}

// listTurnFiles returns the markdown turn files sorted by filename.
func listTurnFiles(ws string) []string {
	entries, err := os.ReadDir(TurnsDir(ws))
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
