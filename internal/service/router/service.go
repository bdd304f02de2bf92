// Package router turns an ask into a backend call: it picks the credential
// for the caller's mode, applies the exam content filter and selects the
// system instruction.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/analysis/intent"
	model "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/service/ai"
	"github.com/zhouzirui/codetutor/backend/internal/telemetry"
)

// FilteredModel is the model identifier reported for refused exam prompts.
const FilteredModel = "filtered"

// CredentialResolver resolves a session token to the credential behind it.
type CredentialResolver interface {
	ResolveCredential(ctx context.Context, token string) (string, error)
}

// SharedPool hands out shared fallback credentials.
type SharedPool interface {
	Next() (string, error)
}

// Generator is the generative backend.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (ai.Reply, error)
	Classify(ctx context.Context, credential, prompt string) (ai.Reply, error)
}

// Instructions maps a mode to its system instruction.
type Instructions interface {
	Instruction(m chat.Mode) (string, bool)
}

// Request is one ask.
type Request struct {
	Mode    chat.Mode
	Prompt  string
	Token   string
	History []chat.Exchange
}

// Service is the mode router.
type Service struct {
	tokens       CredentialResolver
	pool         SharedPool
	generator    Generator
	instructions Instructions
	filter       *intent.Classifier
	metrics      *telemetry.Metrics
	logger       *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithFilter replaces the default exam phrase classifier.
func WithFilter(c *intent.Classifier) Option {
	return func(s *Service) { s.filter = c }
}

// WithMetrics records pool draws and filtered prompts.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates the router.
func NewService(tokens CredentialResolver, pool SharedPool, generator Generator, instructions Instructions, opts ...Option) *Service {
	s := &Service{
		tokens:       tokens,
		pool:         pool,
		generator:    generator,
		instructions: instructions,
		metrics:      telemetry.Noop(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.filter == nil {
		s.filter = intent.Default()
	}
	s.logger = s.logger.Named("router")
	return s
}

// Ask answers req. Refused exam prompts never reach the backend, and neither
// does a practice ask without an active token.
func (s *Service) Ask(ctx context.Context, req Request) (ai.Reply, error) {
	if _, ok := chat.ParseMode(string(req.Mode)); !ok {
		return ai.Reply{}, fmt.Errorf("%w: unknown mode %q", model.ErrInvalidArgument, req.Mode)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return ai.Reply{}, fmt.Errorf("%w: prompt is required", model.ErrInvalidArgument)
	}

	cred, err := s.credentialFor(ctx, req.Mode, req.Token)
	if err != nil {
		return ai.Reply{}, err
	}

	if req.Mode == chat.ModeExam {
		// 只看提问者自己的话，题目信息块里的“đề bài”等字样不算
		if decision := s.filter.Classify(chat.CallerText(req.Prompt)); decision.Refuse() {
			s.metrics.PromptsFiltered.Add(ctx, 1)
			s.logger.Info("exam prompt refused", zap.Int("length", len(req.Prompt)))
			return ai.Reply{Text: s.filter.Refusal(), Model: FilteredModel}, nil
		}
	}

	instruction, ok := s.instructions.Instruction(req.Mode)
	if !ok {
		return ai.Reply{}, fmt.Errorf("%w: no instruction for mode %s", model.ErrUnknown, req.Mode)
	}

	reply, err := s.generator.Generate(ctx, ai.Request{
		Credential:  cred,
		Instruction: instruction,
		History:     req.History,
		Prompt:      req.Prompt,
	})
	if err != nil {
		s.logFailure(req.Mode, err)
		return ai.Reply{}, err
	}
	return reply, nil
}

// Classify sends a bare prompt using the credential behind token.
func (s *Service) Classify(ctx context.Context, token, prompt string) (ai.Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return ai.Reply{}, fmt.Errorf("%w: prompt is required", model.ErrInvalidArgument)
	}
	if strings.TrimSpace(token) == "" {
		return ai.Reply{}, fmt.Errorf("%w: token is required", model.ErrUnauthorized)
	}

	cred, err := s.tokens.ResolveCredential(ctx, token)
	if err != nil {
		return ai.Reply{}, err
	}

	reply, err := s.generator.Classify(ctx, cred, prompt)
	if err != nil {
		s.logFailure(chat.ModePractice, err)
		return ai.Reply{}, err
	}
	return reply, nil
}

func (s *Service) credentialFor(ctx context.Context, m chat.Mode, token string) (string, error) {
	if m.UsesSharedPool() {
		cred, err := s.pool.Next()
		if err != nil {
			if errors.Is(err, credential.ErrPoolEmpty) {
				return "", fmt.Errorf("%w: %v", model.ErrUnknown, err)
			}
			return "", err
		}
		s.metrics.RecordSharedDraw(ctx, m.String())
		return cred, nil
	}

	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: practice mode requires personal credential", model.ErrUnauthorized)
	}
	cred, err := s.tokens.ResolveCredential(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: practice mode requires personal credential", model.ErrUnauthorized)
	}
	return cred, nil
}

func (s *Service) logFailure(m chat.Mode, err error) {
	fields := []zap.Field{zap.String("mode", m.String()), zap.Error(err)}
	if errors.Is(err, model.ErrUnknown) {
		s.logger.Error("backend call failed", fields...)
		return
	}
	s.logger.Warn("backend call rejected", fields...)
}
