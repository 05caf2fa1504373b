// Package httpapi exposes the topic, post, roundtable, and mention
// operations over HTTP. Handlers only validate and translate; all state
// transitions happen in the stores and orchestrators.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/agent/runtime"
	"github.com/TashanGKD/Tashan-TopicLab/internal/config"
	"github.com/TashanGKD/Tashan-TopicLab/internal/experts"
	"github.com/TashanGKD/Tashan-TopicLab/internal/jobs"
	"github.com/TashanGKD/Tashan-TopicLab/internal/mention"
	"github.com/TashanGKD/Tashan-TopicLab/internal/notify"
	"github.com/TashanGKD/Tashan-TopicLab/internal/posts"
	"github.com/TashanGKD/Tashan-TopicLab/internal/roundtable"
	"github.com/TashanGKD/Tashan-TopicLab/internal/topics"
	"github.com/TashanGKD/Tashan-TopicLab/internal/workspace"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (frontend on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, runner, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string            // if set, require X-API-Key header or query api_key
	Runner         runtime.Runner    // agent runner; stub when nil
	RunnerEnv      map[string]string // credentials handed to the runner
	Notifier       notify.Notifier   // optional; notified of terminal roundtable outcomes
	MetricsHandler http.Handler      // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool              // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server, SSE hub, stores, and orchestrators.
type App struct {
	Server     *http.Server
	Hub        *SSEHub
	Topics     *topics.Store
	Registry   *experts.Registry
	Modes      *roundtable.Modes
	Roundtable *roundtable.Orchestrator
	Mention    *mention.Orchestrator
	Jobs       *jobs.Runner
	Home       string
}

// NewApp creates the HTTP app (server, hub, stores, orchestrators) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	store := topics.NewStore(config.WorkspaceBase(opts.Home))
	if err := store.Load(); err != nil {
		return nil, err
	}
	registry := experts.LoadRegistry(config.SkillsDir(opts.Home))
	modes := roundtable.LoadModes(config.SkillsDir(opts.Home))
	runner := opts.Runner
	if runner == nil {
		runner = runtime.StubRunner{Output: "stub runner: no agent capability configured"}
	}
	jr := jobs.NewRunner()

	rt := &roundtable.Orchestrator{
		Topics:    store,
		Registry:  registry,
		Modes:     modes,
		Jobs:      jr,
		Runner:    runner,
		SkillsDir: config.SkillsDir(opts.Home),
		Env:       opts.RunnerEnv,
		Publisher: hub,
		Notifier:  opts.Notifier,
	}
	mn := &mention.Orchestrator{
		Topics:    store,
		Registry:  registry,
		Jobs:      jr,
		Runner:    runner,
		Env:       opts.RunnerEnv,
		Publisher: hub,
	}
	app := &App{
		Hub:        hub,
		Topics:     store,
		Registry:   registry,
		Modes:      modes,
		Roundtable: rt,
		Mention:    mn,
		Jobs:       jr,
		Home:       opts.Home,
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			var pending, running, completed, failed int64
			for _, t := range store.List() {
				switch t.RoundtableStatus {
				case models.RoundtablePending:
					pending++
				case models.RoundtableRunning:
					running++
				case models.RoundtableCompleted:
					completed++
				case models.RoundtableFailed:
					failed++
				}
			}
			_, _ = fmt.Fprintf(w, "# TYPE topiclab_topics_total gauge\n")
			_, _ = fmt.Fprintf(w, "topiclab_topics_total{status=\"pending\"} %d\n", pending)
			_, _ = fmt.Fprintf(w, "topiclab_topics_total{status=\"running\"} %d\n", running)
			_, _ = fmt.Fprintf(w, "topiclab_topics_total{status=\"completed\"} %d\n", completed)
			_, _ = fmt.Fprintf(w, "topiclab_topics_total{status=\"failed\"} %d\n", failed)
		})
	}

	mux.HandleFunc("/stream", hub.Handler())

	// --- Global registries ---
	mux.HandleFunc("/experts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		out := make([]map[string]any, 0)
		for _, name := range registry.Names() {
			spec, _ := registry.Get(name)
			out = append(out, map[string]any{
				"name":        spec.Name,
				"label":       spec.Label,
				"description": spec.Description,
			})
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("/moderator-modes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, modes.List())
	})

	// --- Topics ---
	mux.HandleFunc("/topics", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, store.List())
		case http.MethodPost:
			var body models.CreateTopicRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			if strings.TrimSpace(body.Title) == "" {
				writeJSONError(w, http.StatusBadRequest, "title required")
				return
			}
			t, err := store.Create(body.Title, body.Body, body.NumRounds, body.ExpertNames)
			if err != nil {
				writeError(w, err)
				return
			}
			ws, err := workspace.TopicDirChecked(store.Base(), t.ID)
			if err == nil {
				if err := registry.EnsureDefaultRoles(ws, t.ExpertNames); err != nil {
					slog.Warn("failed to seed expert roles", "topic", t.ID, "err", err)
				}
				for _, name := range t.ExpertNames {
					source := models.SourceCustom
					if _, ok := registry.Get(name); ok {
						source = models.SourcePreset
					}
					entry := models.ExpertEntry{Name: name, Source: source, IsFromTopicCreation: true}
					if spec, ok := registry.Get(name); ok {
						entry.Label = spec.Label
						entry.Description = spec.Description
					}
					if err := experts.AddExpert(ws, entry); err != nil {
						slog.Warn("failed to record roster entry", "topic", t.ID, "expert", name, "err", err)
					}
				}
			}
			hub.Publish("topic_created", map[string]any{"topic_id": t.ID})
			writeJSON(w, t)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// --- Topic-scoped endpoints ---
	mux.HandleFunc("/topics/", app.handleTopicScoped)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "topiclab")
	}
	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return app, nil
}

// RunSync starts the periodic workspace reconciliation loop. It blocks until
// ctx is cancelled; run it on its own goroutine.
func (a *App) RunSync(ctx context.Context, interval time.Duration) {
	a.Topics.RunSync(ctx, interval)
}

func (a *App) handleTopicScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/topics/")
	parts := strings.Split(rest, "/")
	if len(parts) < 1 || parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	topicID := parts[0]

	// /topics/{id}
	if len(parts) == 1 || parts[1] == "" {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		t, err := a.Topics.Get(topicID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, t)
		return
	}

	switch parts[1] {
	case "close":
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		t, err := a.Topics.Close(topicID)
		if err != nil {
			writeError(w, err)
			return
		}
		a.Hub.Publish("topic_updated", map[string]any{"topic_id": t.ID})
		writeJSON(w, t)
	case "posts":
		a.handlePosts(w, r, topicID, parts)
	case "roundtable":
		a.handleRoundtable(w, r, topicID, parts)
	case "experts":
		a.handleTopicExperts(w, r, topicID, parts)
	case "moderator-mode":
		a.handleModeratorMode(w, r, topicID)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (a *App) handlePosts(w http.ResponseWriter, r *http.Request, topicID string, parts []string) {
	t, err := a.Topics.Get(topicID)
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := workspace.EnsureTopicWorkspace(a.Topics.Base(), t.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	// /topics/{id}/posts/mention
	if len(parts) >= 3 && parts[2] == "mention" {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body models.MentionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Body) == "" || body.ExpertName == "" {
			writeJSONError(w, http.StatusBadRequest, "body and expert_name required")
			return
		}
		if body.Author == "" {
			body.Author = "human"
		}
		resp, err := a.Mention.Mention(r.Context(), t.ID, body)
		if err != nil {
			writeError(w, err)
			return
		}
		a.Hub.Publish("post_created", map[string]any{"topic_id": t.ID, "post_id": resp.UserPost.ID})
		writeJSONStatus(w, http.StatusAccepted, resp)
		return
	}

	// /topics/{id}/posts/{postID}
	if len(parts) >= 3 && parts[2] != "" {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		p, err := posts.LoadByID(ws, parts[2])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
		return
	}

	switch r.Method {
	case http.MethodGet:
		out := posts.LoadAll(ws)
		if out == nil {
			out = []models.Post{}
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body models.CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Body) == "" {
			writeJSONError(w, http.StatusBadRequest, "body required")
			return
		}
		if body.Author == "" {
			body.Author = "human"
		}
		p := posts.New(t.ID, body.Author, models.AuthorHuman, body.Body)
		if _, err := posts.Save(ws, p); err != nil {
			writeError(w, err)
			return
		}
		a.Hub.Publish("post_created", map[string]any{"topic_id": t.ID, "post_id": p.ID})
		writeJSON(w, p)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleRoundtable(w http.ResponseWriter, r *http.Request, topicID string, parts []string) {
	// /topics/{id}/roundtable/status
	if len(parts) >= 3 && parts[2] == "status" {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		st, err := a.Roundtable.Status(topicID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, st)
		return
	}

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body models.StartRoundtableRequest
	if r.Body != nil {
		// An empty body means default caps.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	t, err := a.Roundtable.Start(r.Context(), topicID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, t)
}

func (a *App) handleTopicExperts(w http.ResponseWriter, r *http.Request, topicID string, parts []string) {
	t, err := a.Topics.Get(topicID)
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := workspace.EnsureTopicWorkspace(a.Topics.Base(), t.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	// /topics/{id}/experts/{name}
	if len(parts) >= 3 && parts[2] != "" {
		if r.Method != http.MethodDelete {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		name := parts[2]
		current := experts.ListExperts(ws)
		found := false
		for _, e := range current {
			if e.Name == name {
				found = true
				break
			}
		}
		if !found {
			writeJSONError(w, http.StatusNotFound, "expert not found")
			return
		}
		if len(current) <= 1 {
			writeJSONError(w, http.StatusBadRequest, "a topic must keep at least one expert")
			return
		}
		if err := experts.DeleteExpert(ws, name); err != nil {
			writeError(w, err)
			return
		}
		if _, err := a.Topics.Update(t.ID, func(tp *models.Topic) {
			kept := tp.ExpertNames[:0]
			for _, n := range tp.ExpertNames {
				if n != name {
					kept = append(kept, n)
				}
			}
			tp.ExpertNames = kept
		}); err != nil {
			writeError(w, err)
			return
		}
		a.Hub.Publish("experts_updated", map[string]any{"topic_id": t.ID})
		writeJSON(w, map[string]any{"ok": true})
		return
	}

	switch r.Method {
	case http.MethodGet:
		out := experts.ListExperts(ws)
		if out == nil {
			out = []models.ExpertEntry{}
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body models.AddExpertRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Name == "" {
			writeJSONError(w, http.StatusBadRequest, "name required")
			return
		}
		if body.Source == "" {
			body.Source = models.SourceCustom
		}
		entry := models.ExpertEntry{
			Name:        body.Name,
			Label:       body.Label,
			Description: body.Description,
			Source:      body.Source,
		}
		if err := experts.AddExpert(ws, entry); err != nil {
			writeError(w, err)
			return
		}
		if err := a.Registry.EnsureDefaultRoles(ws, []string{body.Name}); err != nil {
			writeError(w, err)
			return
		}
		if _, err := a.Topics.Update(t.ID, func(tp *models.Topic) {
			for _, n := range tp.ExpertNames {
				if n == body.Name {
					return
				}
			}
			tp.ExpertNames = append(tp.ExpertNames, body.Name)
		}); err != nil {
			writeError(w, err)
			return
		}
		a.Hub.Publish("experts_updated", map[string]any{"topic_id": t.ID})
		writeJSON(w, experts.ListExperts(ws))
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleModeratorMode(w http.ResponseWriter, r *http.Request, topicID string) {
	t, err := a.Topics.Get(topicID)
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := workspace.EnsureTopicWorkspace(a.Topics.Base(), t.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, roundtable.LoadModeConfig(ws))
	case http.MethodPut:
		var body models.ModeratorModeConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.ModeID == "" {
			writeJSONError(w, http.StatusBadRequest, "mode_id required")
			return
		}
		if body.ModeID != roundtable.CustomModeID {
			if _, ok := a.Modes.Get(body.ModeID); !ok && body.ModeID != roundtable.DefaultModeID {
				writeJSONError(w, http.StatusBadRequest, "unknown mode_id")
				return
			}
		}
		if body.NumRounds <= 0 {
			if m, ok := a.Modes.Get(body.ModeID); ok {
				body.NumRounds = m.NumRounds
			} else {
				body.NumRounds = models.DefaultNumRounds
			}
		}
		if err := roundtable.SaveModeConfig(ws, body); err != nil {
			writeError(w, err)
			return
		}
		if _, err := a.Topics.Update(t.ID, func(tp *models.Topic) {
			tp.NumRounds = body.NumRounds
		}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, body)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, topics.ErrNotFound),
		errors.Is(err, posts.ErrNotFound),
		errors.Is(err, mention.ErrExpertNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, topics.ErrAlreadyRunning):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workspace.ErrInvalidIdentifier),
		errors.Is(err, workspace.ErrPathTraversal),
		errors.Is(err, roundtable.ErrNoExperts):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONStatus sends a JSON body with an explicit status code
// (e.g. 202 Accepted).
func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
