// Package client talks to the broker's HTTP surface on behalf of a
// conversation session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/model/api"
	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
)

// DefaultTimeout bounds a single broker request. Backend generation can be
// slow, so this is generous.
const DefaultTimeout = 90 * time.Second

// Client is an HTTP client for the broker.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a client for the broker at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("client")
	return c
}

// HasCredential reports whether identity has a stored credential.
func (c *Client) HasCredential(ctx context.Context, identity string) (bool, error) {
	var out api.CheckIdentityResponse
	if err := c.post(ctx, "/check-identity", api.CheckIdentityRequest{Identity: identity}, &out, errorKinds{}); err != nil {
		return false, err
	}
	return out.HasCredential, nil
}

// TestCredential asks the broker to check the credential format. A malformed
// credential is reported through reason, not err.
func (c *Client) TestCredential(ctx context.Context, credential string) (valid bool, reason string, err error) {
	var out api.TestCredentialResponse
	if err := c.post(ctx, "/issue-personal-credential-test", api.TestCredentialRequest{Credential: credential}, &out, errorKinds{}); err != nil {
		return false, "", err
	}
	return out.Valid, out.Reason, nil
}

// SaveCredential stores credential for identity.
func (c *Client) SaveCredential(ctx context.Context, identity, displayName, credential string) error {
	req := api.SaveCredentialRequest{Identity: identity, DisplayName: displayName, Credential: credential}
	return c.post(ctx, "/save-credential", req, &api.SuccessResponse{}, errorKinds{})
}

// IssueToken requests a session token for identity. A 400 means no
// credential is stored and is reported as broker.ErrNotFound.
func (c *Client) IssueToken(ctx context.Context, identity string) (string, error) {
	var out api.IssueTokenResponse
	if err := c.post(ctx, "/issue-token", api.IssueTokenRequest{Identity: identity}, &out, errorKinds{badRequest: broker.ErrNotFound}); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", broker.ErrUnknown)
	}
	return out.Token, nil
}

// RevokeToken releases token.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	return c.post(ctx, "/revoke-token", api.RevokeTokenRequest{Token: token}, &api.SuccessResponse{}, errorKinds{})
}

// Ask sends one turn. history must not contain the prompt itself.
func (c *Client) Ask(ctx context.Context, m chat.Mode, prompt, token string, history []chat.Exchange) (api.AskResponse, error) {
	req := api.AskRequest{Prompt: prompt, Token: token, History: history, Mode: m}
	if req.History == nil {
		req.History = []chat.Exchange{}
	}
	var out api.AskResponse
	if err := c.post(ctx, "/ask", req, &out, errorKinds{}); err != nil {
		return api.AskResponse{}, err
	}
	return out, nil
}

// Health returns the broker health summary.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out, errorKinds{}); err != nil {
		return api.HealthResponse{}, err
	}
	return out, nil
}

// Modes lists the mode profiles served by the broker.
func (c *Client) Modes(ctx context.Context) ([]mode.Profile, error) {
	var out []mode.Profile
	if err := c.do(ctx, http.MethodGet, "/modes", nil, &out, errorKinds{}); err != nil {
		return nil, err
	}
	return out, nil
}

// errorKinds overrides the default status to sentinel mapping per call.
type errorKinds struct {
	badRequest error
}

func (c *Client) post(ctx context.Context, path string, body, out any, kinds errorKinds) error {
	return c.do(ctx, http.MethodPost, path, body, out, kinds)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, kinds errorKinds) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", broker.ErrInvalidArgument, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", broker.ErrUnknown, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s %s: %w", broker.ErrUnknown, method, path, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", broker.ErrUnknown, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", broker.ErrUnknown, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Debug("broker request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return statusError(resp.StatusCode, data, kinds)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", broker.ErrUnknown, err)
	}
	return nil
}

func statusError(status int, body []byte, kinds errorKinds) error {
	message := http.StatusText(status)
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}

	var kind error
	switch status {
	case http.StatusBadRequest:
		switch {
		case strings.HasPrefix(message, broker.ErrNotFound.Error()):
			kind = broker.ErrNotFound
		case strings.HasPrefix(message, broker.ErrInvalidArgument.Error()):
			kind = broker.ErrInvalidArgument
		case kinds.badRequest != nil:
			kind = kinds.badRequest
		default:
			kind = broker.ErrInvalidArgument
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = broker.ErrUnauthorized
	case http.StatusTooManyRequests:
		kind = broker.ErrRateLimited
	default:
		kind = broker.ErrUnknown
	}

	// the server already prefixes its message with the sentinel text
	message = strings.TrimPrefix(strings.TrimPrefix(message, kind.Error()), ": ")
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
