package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAgentCrash(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "wrapped crash sentinel", err: fmt.Errorf("agent: boom: %w", ErrAgentCrash), want: true},
		{name: "expired session sentinel", err: ErrSessionExpired, want: true},
		{name: "closed page signature", err: errors.New("Target page, context or browser has been closed"), want: true},
		{name: "disconnected browser signature", err: errors.New("error: browser has been disconnected from us"), want: true},
		{name: "destroyed execution context", err: errors.New("Execution context was destroyed, most likely because of a navigation"), want: true},
		{name: "ordinary failure", err: errors.New("element not found"), want: false},
		{name: "timeout failure", err: errors.New("waiting for selector timed out"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAgentCrash(tt.err))
		})
	}
}

func agentOK(data any) []byte {
	b, _ := json.Marshal(map[string]any{"success": true, "data": data})
	return b
}

func agentFail(message string) []byte {
	b, _ := json.Marshal(map[string]any{"success": false, "error": message})
	return b
}

func TestBrowserAgentClientInit(t *testing.T) {
	var gotAuth, gotContextID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			ContextID string `json:"context_id"`
			ProjectID string `json:"project_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotContextID = req.ContextID

		w.Write(agentOK(map[string]string{"session_id": "sess-42"}))
	}))
	defer server.Close()

	client := NewBrowserAgentClient(server.URL, "key-1", "proj-1", time.Second)
	session, err := client.Init(context.Background(), "ctx-7")
	require.NoError(t, err)

	assert.Equal(t, "sess-42", session.ID())
	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "ctx-7", gotContextID)
}

func TestBrowserAgentClientInitRequiresContext(t *testing.T) {
	client := NewBrowserAgentClient("http://localhost:0", "key", "proj", time.Second)
	_, err := client.Init(context.Background(), "")
	assert.ErrorIs(t, err, ErrContextMissing)
}

func TestBrowserAgentSessionOperations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/sessions":
			w.Write(agentOK(map[string]string{"session_id": "sess-1"}))
		case r.URL.Path == "/v1/sessions/sess-1/navigate":
			w.Write(agentOK(nil))
		case r.URL.Path == "/v1/sessions/sess-1/extract":
			w.Write(agentOK(map[string]any{"candidates": []map[string]string{{"name": "Sam"}}}))
		case r.URL.Path == "/v1/sessions/sess-1/url":
			w.Write(agentOK(map[string]string{"url": "https://example.com/page"}))
		case r.URL.Path == "/v1/sessions/sess-1" && r.Method == http.MethodDelete:
			w.Write(agentOK(nil))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewBrowserAgentClient(server.URL, "", "", time.Second)
	session, err := client.Init(context.Background(), "ctx-1")
	require.NoError(t, err)

	require.NoError(t, session.Navigate(context.Background(), "https://example.com"))

	var out struct {
		Candidates []struct {
			Name string `json:"name"`
		} `json:"candidates"`
	}
	require.NoError(t, session.Extract(context.Background(), "extract people", &out))
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "Sam", out.Candidates[0].Name)

	url, err := session.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", url)

	assert.NoError(t, session.Close(context.Background()))
}

func TestBrowserAgentClientErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       []byte
		wantCrash  bool
		wantExpire bool
	}{
		{
			name:      "crash signature in error body",
			status:    http.StatusInternalServerError,
			body:      agentFail("Target page, context or browser has been closed"),
			wantCrash: true,
		},
		{
			name:       "gone session",
			status:     http.StatusGone,
			body:       agentFail("session not found"),
			wantExpire: true,
			wantCrash:  true,
		},
		{
			name:       "session endpoint 404",
			status:     http.StatusNotFound,
			body:       agentFail("no such session"),
			wantExpire: true,
			wantCrash:  true,
		},
		{
			name:   "plain failure",
			status: http.StatusBadRequest,
			body:   agentFail("instruction unclear"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v1/sessions" {
					w.Write(agentOK(map[string]string{"session_id": "sess-1"}))
					return
				}
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			defer server.Close()

			client := NewBrowserAgentClient(server.URL, "", "", time.Second)
			session, err := client.Init(context.Background(), "ctx-1")
			require.NoError(t, err)

			err = session.Act(context.Background(), "click something")
			require.Error(t, err)
			assert.Equal(t, tt.wantCrash, IsAgentCrash(err))
			assert.Equal(t, tt.wantExpire, errors.Is(err, ErrSessionExpired))
		})
	}
}
