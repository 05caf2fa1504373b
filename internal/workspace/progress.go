package workspace

import (
	"os"
	"path/filepath"

	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

// ReadProgress derives live roundtable progress from the turn files.
// completedTurns counts turn files; totalTurns is expertCount*roundCount (0
// when either is unknown). The most recently modified file determines the
// current round and latest speaker. Equal modification times (coarse
// filesystem clocks) tie-break on the lexicographically greater filename,
// which for the round<N>_<key>.md convention is the later turn.
func ReadProgress(ws string, expertCount, roundCount int, labelFor LabelFunc) models.RoundtableProgress {
	files := listTurnFiles(ws)

	p := models.RoundtableProgress{
		CompletedTurns: len(files),
	}
	if expertCount > 0 && roundCount > 0 {
		p.TotalTurns = expertCount * roundCount
	}
	if len(files) == 0 {
		return p
	}

	latest := ""
	var latestMod int64
	for _, name := range files {
		info, err := os.Stat(filepath.Join(TurnsDir(ws), name))
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if latest == "" || mod > latestMod || (mod == latestMod && name > latest) {
			latest = name
			latestMod = mod
		}
	}
	if latest == "" {
		return p
	}

	if round, key, ok := ParseTurnName(latest); ok {
		p.CurrentRound = round
		p.LatestSpeaker = key
		if labelFor != nil {
			p.LatestSpeaker = labelFor(key)
		}
	}
	return p
}
