package voicesynth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// Config holds voice-synthesis provider settings.
type Config struct {
	BaseURL        string
	APIKey         string
	DefaultAgentID string
}

// Result is a successful negotiation outcome. Attempts includes the failed
// tries that preceded the success, for response shaping.
type Result struct {
	Endpoint       string
	ConversationID string
	Raw            map[string]interface{}
	Attempts       []domain.EndpointAttempt
}

// Negotiator tries an ordered list of candidate endpoints for the same
// semantic request and stops at the first success.
type Negotiator struct {
	cfg        Config
	candidates []Candidate
	httpClient *http.Client
}

// NewNegotiator creates a negotiator over the given candidates. An empty
// candidate list falls back to the defaults.
func NewNegotiator(cfg Config, candidates []Candidate) *Negotiator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	return &Negotiator{
		cfg:        cfg,
		candidates: candidates,
		httpClient: &http.Client{},
	}
}

// IsConfigured reports whether the provider credentials are present.
func (n *Negotiator) IsConfigured() bool {
	return n.cfg.APIKey != "" && n.cfg.DefaultAgentID != ""
}

// DefaultAgentID returns the configured fallback agent.
func (n *Negotiator) DefaultAgentID() string {
	return n.cfg.DefaultAgentID
}

// Negotiate tries each candidate in order. It returns the first success, or a
// *domain.NegotiationError carrying one attempt record per failed candidate.
func (n *Negotiator) Negotiate(ctx context.Context, req ConversationRequest) (*Result, error) {
	if !n.IsConfigured() {
		return nil, domain.ErrProviderUnavailable
	}
	if req.AgentID == "" {
		req.AgentID = n.cfg.DefaultAgentID
	}

	var attempts []domain.EndpointAttempt
	for _, candidate := range n.candidates {
		raw, err := n.try(ctx, candidate, req)
		if err != nil {
			logger.Base().Warn("candidate endpoint failed",
				zap.String("endpoint", candidate.Name),
				zap.Error(err),
			)
			attempts = append(attempts, domain.EndpointAttempt{
				Endpoint: candidate.Name,
				Error:    err.Error(),
			})
			continue
		}

		attempts = append(attempts, domain.EndpointAttempt{
			Endpoint: candidate.Name,
			Success:  true,
		})
		logger.Base().Info("conversation started",
			zap.String("endpoint", candidate.Name),
			zap.String("conversation_id", conversationID(raw)),
		)
		return &Result{
			Endpoint:       candidate.Name,
			ConversationID: conversationID(raw),
			Raw:            raw,
			Attempts:       attempts,
		}, nil
	}

	return nil, &domain.NegotiationError{Attempts: attempts}
}

// try sends one candidate request with its own timeout.
func (n *Negotiator) try(ctx context.Context, candidate Candidate, req ConversationRequest) (map[string]interface{}, error) {
	timeout := candidate.Timeout
	if timeout <= 0 {
		timeout = DefaultCandidateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(candidate.BuildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+candidate.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", n.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

// conversationID digs the conversation identifier out of whichever field the
// responding endpoint used.
func conversationID(raw map[string]interface{}) string {
	for _, key := range []string{"conversation_id", "call_id", "id"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
