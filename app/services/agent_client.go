// Package services provides external service integrations and technical concerns like browser agents and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Agent error constants
var (
	ErrAgentCrash     = errors.New("agent session crashed")
	ErrSessionExpired = errors.New("agent session expired")
	ErrContextMissing = errors.New("browser context not found")
)

// crashSignatures are substrings the automation backend emits when the
// underlying page or browser dies mid-session. Matching any of these means
// the session is unrecoverable and must be replaced, not retried.
var crashSignatures = []string{
	"target page, context or browser has been closed",
	"browser has been disconnected",
	"session has ended",
	"page crashed",
	"net::err_aborted",
	"execution context was destroyed",
}

// IsAgentCrash reports whether the error indicates a dead browser session
func IsAgentCrash(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAgentCrash) || errors.Is(err, ErrSessionExpired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range crashSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// AgentAction is a candidate page action discovered by Observe
type AgentAction struct {
	Description string `json:"description"`
	Selector    string `json:"selector"`
	Method      string `json:"method"`
}

// AgentSession is a live browser automation session bound to a persisted
// browser context. All methods honor context cancellation.
type AgentSession interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Observe(ctx context.Context, instruction string) ([]AgentAction, error)
	Act(ctx context.Context, instruction string) error
	Extract(ctx context.Context, instruction string, out any) error
	CurrentURL(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// AgentClient creates browser automation sessions on top of persisted contexts
type AgentClient interface {
	Init(ctx context.Context, contextID string) (AgentSession, error)
}

// BrowserAgentClient talks to a Stagehand-style automation worker over HTTP
type BrowserAgentClient struct {
	BaseURL    string
	APIKey     string
	ProjectID  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewBrowserAgentClient creates a new browser agent client
func NewBrowserAgentClient(baseURL, apiKey, projectID string, timeout time.Duration) *BrowserAgentClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &BrowserAgentClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		ProjectID:  projectID,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

func (c *BrowserAgentClient) Name() string { return "browser-agent" }

type agentEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *string         `json:"error"`
}

type sessionCreateReq struct {
	ProjectID string `json:"project_id"`
	ContextID string `json:"context_id"`
	Persist   bool   `json:"persist"`
}

type sessionCreateResp struct {
	SessionID string `json:"session_id"`
}

// Init starts a session attached to the given persisted context. The context
// carries the prospect-network cookies; sessions created from it share the
// same logged-in identity.
func (c *BrowserAgentClient) Init(ctx context.Context, contextID string) (AgentSession, error) {
	if contextID == "" {
		return nil, ErrContextMissing
	}

	var out sessionCreateResp
	err := c.postJSON(ctx, "/v1/sessions", sessionCreateReq{
		ProjectID: c.ProjectID,
		ContextID: contextID,
		Persist:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, errors.New("agent: empty session id in response")
	}

	return &browserAgentSession{client: c, sessionID: out.SessionID}, nil
}

// browserAgentSession implements AgentSession over the worker's session endpoints
type browserAgentSession struct {
	client    *BrowserAgentClient
	sessionID string
}

func (s *browserAgentSession) ID() string { return s.sessionID }

func (s *browserAgentSession) path(op string) string {
	return "/v1/sessions/" + s.sessionID + "/" + op
}

func (s *browserAgentSession) Navigate(ctx context.Context, url string) error {
	return s.client.postJSON(ctx, s.path("navigate"), map[string]string{"url": url}, nil)
}

func (s *browserAgentSession) Observe(ctx context.Context, instruction string) ([]AgentAction, error) {
	var out struct {
		Actions []AgentAction `json:"actions"`
	}
	err := s.client.postJSON(ctx, s.path("observe"), map[string]string{"instruction": instruction}, &out)
	if err != nil {
		return nil, err
	}
	return out.Actions, nil
}

func (s *browserAgentSession) Act(ctx context.Context, instruction string) error {
	return s.client.postJSON(ctx, s.path("act"), map[string]string{"instruction": instruction}, nil)
}

func (s *browserAgentSession) Extract(ctx context.Context, instruction string, out any) error {
	return s.client.postJSON(ctx, s.path("extract"), map[string]string{"instruction": instruction}, out)
}

func (s *browserAgentSession) CurrentURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := s.client.getJSON(ctx, s.path("url"), &out)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *browserAgentSession) Close(ctx context.Context) error {
	return s.client.deleteJSON(ctx, "/v1/sessions/"+s.sessionID)
}

// HTTP helpers

func (c *BrowserAgentClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *BrowserAgentClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *BrowserAgentClient) deleteJSON(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *BrowserAgentClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusGone {
		return fmt.Errorf("agent: %w", ErrSessionExpired)
	}
	if resp.StatusCode == http.StatusNotFound && strings.Contains(req.URL.Path, "/sessions/") {
		return fmt.Errorf("agent: %w", ErrSessionExpired)
	}

	var env agentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("agent: decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Message
		if env.Error != nil && *env.Error != "" {
			msg = *env.Error
		}
		lower := strings.ToLower(msg)
		for _, sig := range crashSignatures {
			if strings.Contains(lower, sig) {
				return fmt.Errorf("agent: %s: %w", msg, ErrAgentCrash)
			}
		}
		return fmt.Errorf("agent: request failed (status %d): %s", resp.StatusCode, msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("agent: decode data: %w", err)
		}
	}
	return nil
}
