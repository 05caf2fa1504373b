package workspace

import "path/filepath"

// TopicsDir returns the directory holding all topic workspaces: <base>/topics/.
func TopicsDir(base string) string {
	return filepath.Join(base, "topics")
}

// TopicDir returns the workspace root for one topic: <base>/topics/<id>/.
// It does not validate the id; use EnsureTopicWorkspace for untrusted input.
func TopicDir(base, topicID string) string {
	return filepath.Join(TopicsDir(base), topicID)
}

// PostsDir returns the post store directory: <ws>/posts/.
func PostsDir(ws string) string {
	return filepath.Join(ws, "posts")
}

// SharedDir returns the shared workspace open to all experts: <ws>/shared/.
func SharedDir(ws string) string {
	return filepath.Join(ws, "shared")
}

// TurnsDir returns the turn artifact directory: <ws>/shared/turns/.
func TurnsDir(ws string) string {
	return filepath.Join(ws, "shared", "turns")
}

// SummaryPath returns the discussion summary file: <ws>/shared/discussion_summary.md.
func SummaryPath(ws string) string {
	return filepath.Join(ws, "shared", "discussion_summary.md")
}

// AgentsDir returns the per-expert directory root: <ws>/agents/.
func AgentsDir(ws string) string {
	return filepath.Join(ws, "agents")
}

// AgentDir returns one expert's private directory: <ws>/agents/<name>/.
func AgentDir(ws, expertName string) string {
	return filepath.Join(ws, "agents", expertName)
}

// RolePath returns an expert's role definition: <ws>/agents/<name>/role.md.
func RolePath(ws, expertName string) string {
	return filepath.Join(AgentDir(ws, expertName), "role.md")
}

// ConfigDir returns the per-topic config directory: <ws>/config/.
func ConfigDir(ws string) string {
	return filepath.Join(ws, "config")
}

// TopicFilePath returns the persisted topic record: <ws>/topic.json.
func TopicFilePath(ws string) string {
	return filepath.Join(ws, "topic.json")
}

// ModeratorModePath returns the moderator mode config: <ws>/config/moderator_mode.json.
func ModeratorModePath(ws string) string {
	return filepath.Join(ws, "config", "moderator_mode.json")
}

// ModeratorSkillPath returns the rendered moderator skill: <ws>/config/moderator_skill.md.
func ModeratorSkillPath(ws string) string {
	return filepath.Join(ws, "config", "moderator_skill.md")
}

// ExpertsMetadataPath returns the roster metadata file: <ws>/config/experts_metadata.json.
func ExpertsMetadataPath(ws string) string {
	return filepath.Join(ws, "config", "experts_metadata.json")
}
