// Package mention handles @mention expert replies: the human post is saved,
// a pending placeholder is linked to it, and a single-expert read-only agent
// run fills the placeholder in the background. The placeholder keeps its id
// and created_at across the overwrite, so pollers see one stable reply post
// moving from pending to completed or failed.
package mention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/agent/runtime"
	"github.com/TashanGKD/Tashan-TopicLab/internal/experts"
	"github.com/TashanGKD/Tashan-TopicLab/internal/jobs"
	"github.com/TashanGKD/Tashan-TopicLab/internal/otel"
	"github.com/TashanGKD/Tashan-TopicLab/internal/posts"
	"github.com/TashanGKD/Tashan-TopicLab/internal/topics"
	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

// ErrExpertNotFound is returned when the mentioned expert has no role in the
// topic workspace and no preset in the registry.
var ErrExpertNotFound = errors.New("expert not found")

// ApologyBody replaces the placeholder body when a reply job fails. Fixed
// text so a failed placeholder is never left empty.
const ApologyBody = "The expert was unable to produce a reply. Please try again later."

const userPromptTemplate = `Topic: %s

%s asked %s:

%s

Explore the topic workspace as needed and answer the question as this expert.
Respond with the reply text only.`

// Publisher receives mention lifecycle events for live streaming.
type Publisher interface {
	Publish(event string, data map[string]any)
}

// Orchestrator runs the mention-reply flow.
type Orchestrator struct {
	Topics    *topics.Store
	Registry  *experts.Registry
	Jobs      *jobs.Runner
	Runner    runtime.Runner
	Env       map[string]string
	Publisher Publisher
}

// Mention saves the human's post and a pending placeholder, then submits the
// expert reply as a background job. It returns after the placeholder is
// durable; the reply arrives by overwrite.
func (o *Orchestrator) Mention(ctx context.Context, topicID string, req models.MentionRequest) (models.MentionResponse, error) {
	t, err := o.Topics.Get(topicID)
	if err != nil {
		return models.MentionResponse{}, err
	}
	ws, err := workspace.EnsureTopicWorkspace(o.Topics.Base(), t.ID)
	if err != nil {
		return models.MentionResponse{}, err
	}
	label, err := o.expertLabel(ws, req.ExpertName)
	if err != nil {
		return models.MentionResponse{}, err
	}

	userPost := posts.New(t.ID, req.Author, models.AuthorHuman, req.Body)
	userPost.InReplyToID = req.InReplyToID
	if _, err := posts.Save(ws, userPost); err != nil {
		return models.MentionResponse{}, fmt.Errorf("save user post: %w", err)
	}

	placeholder := posts.New(t.ID, req.ExpertName, models.AuthorAgent, "")
	placeholder.ExpertName = req.ExpertName
	placeholder.ExpertLabel = label
	placeholder.InReplyToID = userPost.ID
	placeholder.Status = models.PostPending
	if _, err := posts.Save(ws, placeholder); err != nil {
		return models.MentionResponse{}, fmt.Errorf("save reply placeholder: %w", err)
	}

	question := req.Body
	asker := req.Author
	title := t.Title
	o.Jobs.Submit(ctx, jobs.KindMentionReply, placeholder.ID, func(jobCtx context.Context) error {
		o.run(jobCtx, ws, title, asker, question, placeholder)
		return nil
	})

	return models.MentionResponse{
		UserPost:    userPost,
		ReplyPostID: placeholder.ID,
		Status:      models.PostPending,
	}, nil
}

// Reply returns the reply post by id so callers can poll for completion.
func (o *Orchestrator) Reply(topicID, replyID string) (models.Post, error) {
	ws, err := workspace.TopicDirChecked(o.Topics.Base(), topicID)
	if err != nil {
		return models.Post{}, err
	}
	return posts.LoadByID(ws, replyID)
}

func (o *Orchestrator) run(ctx context.Context, ws, title, asker, question string, placeholder models.Post) {
	start := time.Now()
	o.publish("mention_reply_started", map[string]any{
		"topic_id": placeholder.TopicID,
		"post_id":  placeholder.ID,
		"expert":   placeholder.ExpertName,
	})

	body, err := o.execute(ctx, ws, title, asker, question, placeholder)
	status := models.PostCompleted
	if err != nil {
		slog.Error("mention reply failed", "topic", placeholder.TopicID, "post", placeholder.ID, "expert", placeholder.ExpertName, "err", err)
		body = ApologyBody
		status = models.PostFailed
	}

	// Same id and created_at: the overwrite lands on the same file.
	placeholder.Body = body
	placeholder.Status = status
	if _, serr := posts.Save(ws, placeholder); serr != nil {
		slog.Error("failed to overwrite reply placeholder", "post", placeholder.ID, "err", serr)
	}
	otel.RecordMentionReply(ctx, placeholder.ExpertName, status, time.Since(start))
	o.publish("mention_reply_"+status, map[string]any{
		"topic_id": placeholder.TopicID,
		"post_id":  placeholder.ID,
		"expert":   placeholder.ExpertName,
	})
}

func (o *Orchestrator) execute(ctx context.Context, ws, title, asker, question string, placeholder models.Post) (string, error) {
	req := runtime.RunRequest{
		SystemPrompt: o.Registry.ResolveRole(ws, placeholder.ExpertName),
		Prompt:       fmt.Sprintf(userPromptTemplate, title, asker, placeholder.ExpertLabel, question),
		Dir:          ws,
		AllowedTools: []string{"Read", "Glob"},
		MaxTurns:     models.DefaultMentionMaxTurns,
		MaxBudgetUSD: models.DefaultMentionBudgetUSD,
		Env:          o.Env,
	}
	res, err := o.Runner.Run(ctx, req, func(ev runtime.Event) {
		o.publish("agent_event", map[string]any{
			"topic_id": placeholder.TopicID,
			"post_id":  placeholder.ID,
			"type":     ev.Type,
		})
	})
	if err != nil {
		return "", err
	}
	body := ExtractReplyBody(res.Output)
	if body == "" {
		return "", errors.New("agent produced an empty reply")
	}
	if res.TotalCostUSD != nil {
		otel.RecordAgentCost(ctx, jobs.KindMentionReply, *res.TotalCostUSD)
	}
	return body, nil
}

// expertLabel verifies the mentioned expert exists for the topic and returns
// its display label. Topic roster entries win over registry presets.
func (o *Orchestrator) expertLabel(ws, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrExpertNotFound)
	}
	for _, e := range experts.ListExperts(ws) {
		if e.Name == name {
			if e.Label != "" {
				return e.Label, nil
			}
			return e.Name, nil
		}
	}
	if spec, ok := o.Registry.Get(name); ok {
		return spec.Label, nil
	}
	return "", fmt.Errorf("%w: %q", ErrExpertNotFound, name)
}

func (o *Orchestrator) publish(event string, data map[string]any) {
	if o.Publisher == nil {
		return
	}
	o.Publisher.Publish(event, data)
}
