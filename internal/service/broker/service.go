package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	model "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/telemetry"
)

// grant is the active binding behind a session token.
type grant struct {
	identity   string
	credential string
	issuedAt   time.Time
}

// Service issues, resolves and revokes session tokens. Every token is backed
// by the caller's own stored credential, never by the shared pool.
type Service struct {
	store   credential.Store
	metrics *telemetry.Metrics
	logger  *zap.Logger
	newID   func() string

	mu     sync.RWMutex
	active map[string]grant
}

// NewService wires the broker to the credential store.
func NewService(store credential.Store, metrics *telemetry.Metrics, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		metrics: metrics,
		logger:  logger.Named("broker"),
		newID:   uuid.NewString,
		active:  make(map[string]grant),
	}
}

// IssueToken binds a fresh token to the credential stored for identity.
func (s *Service) IssueToken(ctx context.Context, identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("%w: identity is required", model.ErrInvalidArgument)
	}

	record, ok := s.store.Lookup(identity)
	if !ok || record.Credential == "" {
		return "", fmt.Errorf("%w: no credential stored for identity", model.ErrNotFound)
	}

	s.mu.Lock()
	token := s.newID()
	for _, taken := s.active[token]; taken; _, taken = s.active[token] {
		token = s.newID()
	}
	s.active[token] = grant{
		identity:   identity,
		credential: record.Credential,
		issuedAt:   time.Now().UTC(),
	}
	s.mu.Unlock()

	s.metrics.TokensIssued.Add(ctx, 1)
	s.logger.Info("token issued", zap.String("identity", identity), zap.String("token", tokenPrefix(token)))
	return token, nil
}

// ResolveCredential returns the credential behind an active token. The token
// stays active.
func (s *Service) ResolveCredential(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: token is required", model.ErrUnauthorized)
	}

	s.mu.RLock()
	g, ok := s.active[token]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: token is not active", model.ErrUnauthorized)
	}
	return g.credential, nil
}

// RevokeToken deactivates token. Unknown and already revoked tokens are a no-op.
func (s *Service) RevokeToken(ctx context.Context, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	s.mu.Lock()
	g, ok := s.active[token]
	if ok {
		delete(s.active, token)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.metrics.TokensRevoked.Add(ctx, 1)
	s.logger.Info("token revoked", zap.String("identity", g.identity), zap.String("token", tokenPrefix(token)))
}

// ActiveTokens returns the number of currently active tokens.
func (s *Service) ActiveTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
