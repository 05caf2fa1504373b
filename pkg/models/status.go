package models

// Topic statuses.
const (
	TopicDraft  = "draft"
	TopicOpen   = "open"
	TopicClosed = "closed"
)

// Roundtable job statuses.
const (
	RoundtablePending   = "pending"
	RoundtableRunning   = "running"
	RoundtableCompleted = "completed"
	RoundtableFailed    = "failed"
)

// Post statuses.
const (
	PostPending   = "pending"
	PostCompleted = "completed"
	PostFailed    = "failed"
)

// Post author types.
const (
	AuthorHuman = "human"
	AuthorAgent = "agent"
)

// Expert roster sources.
const (
	SourcePreset      = "preset"
	SourceCustom      = "custom"
	SourceAIGenerated = "ai_generated"
)

// Default limits.
const (
	DefaultNumRounds           = 5
	DefaultRoundtableMaxTurns  = 60
	DefaultRoundtableBudgetUSD = 5.0
	DefaultMentionMaxTurns     = 100
	DefaultMentionBudgetUSD    = 10.0
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSyncIntervalSec     = 5.0
)
