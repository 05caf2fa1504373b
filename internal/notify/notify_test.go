package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackWebhook_Notify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := SlackWebhook{WebhookURL: srv.URL, Channel: "#topics", Username: "topiclab"}
	if err := s.Notify(context.Background(), "roundtable completed"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got["text"] != "roundtable completed" || got["channel"] != "#topics" || got["username"] != "topiclab" {
		t.Errorf("payload: %v", got)
	}
}

func TestSlackWebhook_Notify_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := SlackWebhook{WebhookURL: srv.URL}
	if err := s.Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestSlackWebhook_Notify_missingURL(t *testing.T) {
	s := SlackWebhook{}
	if err := s.Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected error with no webhook URL")
	}
}
