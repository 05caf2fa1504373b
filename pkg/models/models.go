// Package models provides shared types for the TopicLab HTTP API and external tools.
// These types mirror the JSON persisted in topic workspaces and are stable for use
// by pkg/client and other consumers.
package models

import "time"

// TimestampFormat is the fixed-width ISO-8601 UTC layout used for all persisted
// timestamps. The fixed fractional width keeps post filenames sortable, so
// directory listing order equals chronological order.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// NowISO returns the current UTC time in TimestampFormat.
func NowISO() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// Topic is a discussion unit with an optional bounded multi-round roundtable.
type Topic struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	Status           string            `json:"status"`            // draft | open | closed
	NumRounds        int               `json:"num_rounds"`        // rounds per roundtable run
	ExpertNames      []string          `json:"expert_names"`      // ordered, unique
	RoundtableStatus string            `json:"roundtable_status"` // pending | running | completed | failed
	RoundtableResult *RoundtableResult `json:"roundtable_result,omitempty"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

// RoundtableResult is the snapshot stored when a roundtable job completes.
type RoundtableResult struct {
	DiscussionHistory string   `json:"discussion_history"`
	DiscussionSummary string   `json:"discussion_summary"`
	TurnsCount        int      `json:"turns_count"`
	CostUSD           *float64 `json:"cost_usd"`
	CompletedAt       string   `json:"completed_at"`
}

// RoundtableProgress is derived live from the turn files in the workspace.
type RoundtableProgress struct {
	CompletedTurns int    `json:"completed_turns"`
	TotalTurns     int    `json:"total_turns"`
	CurrentRound   int    `json:"current_round"`
	LatestSpeaker  string `json:"latest_speaker"`
}

// Post is a single message (human or agent) attached to a topic.
type Post struct {
	ID          string   `json:"id"`
	TopicID     string   `json:"topic_id"`
	Author      string   `json:"author"`
	AuthorType  string   `json:"author_type"` // human | agent
	ExpertName  string   `json:"expert_name"`
	ExpertLabel string   `json:"expert_label"`
	Body        string   `json:"body"`
	Mentions    []string `json:"mentions"`
	InReplyToID string   `json:"in_reply_to_id"`
	Status      string   `json:"status"` // pending | completed | failed
	CreatedAt   string   `json:"created_at"`
}

// ExpertEntry is one roster entry in a topic's experts metadata file.
type ExpertEntry struct {
	Name                string `json:"name"`
	Label               string `json:"label"`
	Description         string `json:"description"`
	Source              string `json:"source"` // preset | custom | ai_generated
	RoleFile            string `json:"role_file,omitempty"`
	AddedAt             string `json:"added_at"`
	IsFromTopicCreation bool   `json:"is_from_topic_creation"`
}

// ModeratorModeConfig is the per-workspace moderator configuration.
type ModeratorModeConfig struct {
	ModeID       string `json:"mode_id"`
	NumRounds    int    `json:"num_rounds"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// ModeratorMode describes a preset moderation style.
type ModeratorMode struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	NumRounds           int    `json:"num_rounds"`
	ConvergenceStrategy string `json:"convergence_strategy"`
}

// CreateTopicRequest creates a topic with an optional initial expert lineup.
type CreateTopicRequest struct {
	Title       string   `json:"title"`
	Body        string   `json:"body,omitempty"`
	NumRounds   int      `json:"num_rounds,omitempty"`
	ExpertNames []string `json:"expert_names,omitempty"`
}

// AddExpertRequest adds an expert to a topic's roster.
type AddExpertRequest struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// CreatePostRequest creates a human post on a topic.
type CreatePostRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// MentionRequest asks a named expert to reply to a human post.
type MentionRequest struct {
	Author      string `json:"author"`
	Body        string `json:"body"`
	ExpertName  string `json:"expert_name"`
	InReplyToID string `json:"in_reply_to_id,omitempty"`
}

// MentionResponse is returned immediately; the reply arrives asynchronously.
type MentionResponse struct {
	UserPost    Post   `json:"user_post"`
	ReplyPostID string `json:"reply_post_id"`
	Status      string `json:"status"`
}

// StartRoundtableRequest tunes the caps for one roundtable run.
type StartRoundtableRequest struct {
	MaxTurns     int     `json:"max_turns,omitempty"`
	MaxBudgetUSD float64 `json:"max_budget_usd,omitempty"`
}

// RoundtableStatusResponse is the polling response for a roundtable job.
type RoundtableStatusResponse struct {
	Status   string              `json:"status"`
	Result   *RoundtableResult   `json:"result,omitempty"`
	Progress *RoundtableProgress `json:"progress,omitempty"`
}
