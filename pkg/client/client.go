// Package client provides a Go SDK for the TopicLab HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

// Client calls the TopicLab HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3986"
	APIKey     string       // optional; set for X-API-Key / api_key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:3986").
// APIKey is optional; when set, requests use the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// ListExpertPresets returns the expert presets registered in the skills directory.
func (c *Client) ListExpertPresets(ctx context.Context) ([]models.ExpertEntry, error) {
	var out []models.ExpertEntry
	err := c.doJSON(ctx, http.MethodGet, "/experts", nil, &out)
	return out, err
}

// ListModeratorModes returns the available moderator modes.
func (c *Client) ListModeratorModes(ctx context.Context) ([]models.ModeratorMode, error) {
	var out []models.ModeratorMode
	err := c.doJSON(ctx, http.MethodGet, "/moderator-modes", nil, &out)
	return out, err
}

// ListTopics returns all topics, newest first.
func (c *Client) ListTopics(ctx context.Context) ([]models.Topic, error) {
	var out []models.Topic
	err := c.doJSON(ctx, http.MethodGet, "/topics", nil, &out)
	return out, err
}

// CreateTopic creates a topic and returns it.
func (c *Client) CreateTopic(ctx context.Context, req models.CreateTopicRequest) (*models.Topic, error) {
	var out models.Topic
	err := c.doJSON(ctx, http.MethodPost, "/topics", req, &out)
	return &out, err
}

// GetTopic returns a topic by ID.
func (c *Client) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	var out models.Topic
	err := c.doJSON(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID), nil, &out)
	return &out, err
}

// CloseTopic closes a topic and returns the updated record.
func (c *Client) CloseTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	var out models.Topic
	err := c.doJSON(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/close", nil, &out)
	return &out, err
}

// ListPosts returns a topic's posts in chronological order.
func (c *Client) ListPosts(ctx context.Context, topicID string) ([]models.Post, error) {
	var out []models.Post
	err := c.doJSON(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/posts", nil, &out)
	return out, err
}

// CreatePost creates a human post and returns it.
func (c *Client) CreatePost(ctx context.Context, topicID, author, body string) (*models.Post, error) {
	var out models.Post
	err := c.doJSON(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/posts",
		models.CreatePostRequest{Author: author, Body: body}, &out)
	return &out, err
}

// GetPost returns a single post by ID.
func (c *Client) GetPost(ctx context.Context, topicID, postID string) (*models.Post, error) {
	var out models.Post
	err := c.doJSON(ctx, http.MethodGet,
		"/topics/"+url.PathEscape(topicID)+"/posts/"+url.PathEscape(postID), nil, &out)
	return &out, err
}

// Mention posts a human message addressed to an expert and returns the pending
// reply placeholder; poll GetPost with ReplyPostID until its status is terminal.
func (c *Client) Mention(ctx context.Context, topicID string, req models.MentionRequest) (*models.MentionResponse, error) {
	var out models.MentionResponse
	err := c.doJSON(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/posts/mention", req, &out)
	return &out, err
}

// StartRoundtable starts a roundtable job; the zero request uses default caps.
func (c *Client) StartRoundtable(ctx context.Context, topicID string, req models.StartRoundtableRequest) (*models.Topic, error) {
	var out models.Topic
	err := c.doJSON(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/roundtable", req, &out)
	return &out, err
}

// RoundtableStatus returns the live status of a topic's roundtable.
func (c *Client) RoundtableStatus(ctx context.Context, topicID string) (*models.RoundtableStatusResponse, error) {
	var out models.RoundtableStatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/roundtable/status", nil, &out)
	return &out, err
}

// ListTopicExperts returns a topic's expert roster.
func (c *Client) ListTopicExperts(ctx context.Context, topicID string) ([]models.ExpertEntry, error) {
	var out []models.ExpertEntry
	err := c.doJSON(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/experts", nil, &out)
	return out, err
}

// AddTopicExpert adds an expert to the roster and returns the updated roster.
func (c *Client) AddTopicExpert(ctx context.Context, topicID string, req models.AddExpertRequest) ([]models.ExpertEntry, error) {
	var out []models.ExpertEntry
	err := c.doJSON(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/experts", req, &out)
	return out, err
}

// RemoveTopicExpert removes an expert from the roster. The server refuses to
// remove the last remaining expert.
func (c *Client) RemoveTopicExpert(ctx context.Context, topicID, name string) error {
	return c.doJSON(ctx, http.MethodDelete,
		"/topics/"+url.PathEscape(topicID)+"/experts/"+url.PathEscape(name), nil, nil)
}

// ModeratorMode returns a topic's moderator configuration.
func (c *Client) ModeratorMode(ctx context.Context, topicID string) (*models.ModeratorModeConfig, error) {
	var out models.ModeratorModeConfig
	err := c.doJSON(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/moderator-mode", nil, &out)
	return &out, err
}

// SetModeratorMode updates a topic's moderator configuration.
func (c *Client) SetModeratorMode(ctx context.Context, topicID string, cfg models.ModeratorModeConfig) (*models.ModeratorModeConfig, error) {
	var out models.ModeratorModeConfig
	err := c.doJSON(ctx, http.MethodPut, "/topics/"+url.PathEscape(topicID)+"/moderator-mode", cfg, &out)
	return &out, err
}
