// Package runtime defines the contract with the external agent-execution
// capability. TopicLab assembles prompts, tool grants, and numeric caps,
// hands them to a Runner, and consumes the terminal Result; the runner's
// internal reasoning and tool loop are opaque.
package runtime

import (
	"context"
	"time"
)

// Event is one intermediate message streamed by a runner during a run.
type Event struct {
	Type      string         `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// AgentDef describes a sub-agent the runner may delegate to during a
// roundtable (one per expert).
type AgentDef struct {
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	Tools       []string `json:"tools"`
}

// RunRequest carries everything a runner needs for one job.
type RunRequest struct {
	SystemPrompt string              `json:"system_prompt"`
	Prompt       string              `json:"prompt"`
	Dir          string              `json:"dir"`           // working directory (topic workspace)
	AllowedTools []string            `json:"allowed_tools"` // capability set for the top-level agent
	Agents       map[string]AgentDef `json:"agents,omitempty"`
	MaxTurns     int                 `json:"max_turns"`
	MaxBudgetUSD float64             `json:"max_budget_usd"`
	Env          map[string]string   `json:"env,omitempty"` // credentials and model selection
}

// Result is the terminal outcome of a run. Output is the final result text;
// TotalCostUSD is nil when the runner does not report cost.
type Result struct {
	NumTurns     int      `json:"num_turns"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
	Output       string   `json:"output"`
}

// Runner executes one agent job, streaming intermediate events through emit
// and returning the terminal result. Any error is contained by the caller
// and converted to a failed job state; it never reaches the process boundary.
type Runner interface {
	Name() string
	Run(ctx context.Context, req RunRequest, emit func(Event)) (Result, error)
}
