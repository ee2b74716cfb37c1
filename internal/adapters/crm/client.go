package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// requestTimeout bounds each CRM API request.
const requestTimeout = 10 * time.Second

// serviceTokenTTL is the lifetime of a service-to-service token.
const serviceTokenTTL = 5 * time.Minute

// Client talks to the CRM backend API. It implements the post-call pipeline's
// collaborator interfaces; requests are authenticated with a short-lived
// service JWT.
type Client struct {
	baseURL     string
	jwtSecret   string
	serviceName string
	httpClient  *http.Client
}

// apiEnvelope is the CRM backend's response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewClient creates a CRM API client. Returns nil if no base URL is
// configured, which callers treat as "no CRM backend".
func NewClient(cfg config.CRMConfig) *Client {
	if cfg.BaseURL == "" {
		logger.Base().Info("CRM API base URL not configured, CRM integration disabled")
		return nil
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		jwtSecret:   cfg.JWTSecret,
		serviceName: cfg.ServiceName,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

// serviceToken signs a short-lived HS256 token identifying this service.
func (c *Client) serviceToken() (string, error) {
	if c.jwtSecret == "" {
		return "", nil
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": c.serviceName,
		"sub": "service",
		"iat": now.Unix(),
		"exp": now.Add(serviceTokenTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(c.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// do sends one request and decodes the envelope. A 409 maps to
// *domain.SchedulingConflictError so the pipeline can treat it as non-fatal.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.serviceToken()
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiEnvelope
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode == http.StatusConflict {
		return &domain.SchedulingConflictError{Detail: envelope.Message}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.Base().Warn("CRM API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", envelope.Message),
		)
		return fmt.Errorf("CRM API %s %s: status %d: %s", method, path, resp.StatusCode, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
