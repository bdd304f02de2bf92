package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/telemetry"
)

// ModelFactory builds a chat model that authenticates with credential and
// targets the named model variant.
type ModelFactory func(ctx context.Context, credential, modelName string) (model.ChatModel, error)

// Request is one generation call.
type Request struct {
	Credential  string
	Instruction string
	History     []chat.Exchange
	Prompt      string
}

// Reply is a successful generation.
type Reply struct {
	Text  string
	Model string
}

// Service runs prompts through a template -> chat model chain built per call,
// since every call may carry a different credential.
type Service struct {
	factory  ModelFactory
	models   []string
	template prompt.ChatTemplate
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// NewService creates the generation service. models lists the primary variant
// followed by at most one alternate used when the primary is rate limited.
func NewService(factory ModelFactory, models []string, metrics *telemetry.Metrics, logger *zap.Logger) (*Service, error) {
	if factory == nil {
		return nil, errors.New("model factory is required")
	}

	variants := make([]string, 0, 2)
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" && len(variants) < 2 {
			variants = append(variants, m)
		}
	}
	if len(variants) == 0 {
		return nil, errors.New("at least one model variant is required")
	}

	if metrics == nil {
		metrics = telemetry.Noop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	return &Service{
		factory:  factory,
		models:   variants,
		template: promptTemplate,
		metrics:  metrics,
		logger:   logger.Named("ai"),
	}, nil
}

// Models returns the configured variants, primary first.
func (s *Service) Models() []string {
	return append([]string(nil), s.models...)
}

// Generate answers req. A rate-limited primary variant is retried once on the
// alternate variant; every other failure is returned as is, classified into
// the broker error taxonomy.
func (s *Service) Generate(ctx context.Context, req Request) (Reply, error) {
	var lastErr error
	for i, name := range s.models {
		started := time.Now()
		text, err := s.generateWith(ctx, name, req)
		if err == nil {
			s.metrics.RecordBackendCall(ctx, name, "ok", time.Since(started))
			s.logger.Debug("generated reply", zap.String("model", name), zap.Int("length", len(text)))
			return Reply{Text: text, Model: name}, nil
		}

		classified := ClassifyError(err)
		s.metrics.RecordBackendCall(ctx, name, outcome(classified), time.Since(started))
		s.logger.Warn("model call failed", zap.String("model", name), zap.Error(err))

		lastErr = classified
		if !errors.Is(classified, broker.ErrRateLimited) {
			break
		}
		if i+1 < len(s.models) {
			s.logger.Info("primary model rate limited, trying alternate", zap.String("alternate", s.models[i+1]))
		}
	}
	return Reply{}, lastErr
}

// Classify sends prompt to the primary variant with no system instruction
// and no history.
func (s *Service) Classify(ctx context.Context, credential, userPrompt string) (Reply, error) {
	name := s.models[0]
	started := time.Now()

	chatModel, err := s.factory(ctx, credential, name)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: create chat model: %v", broker.ErrUnknown, err)
	}

	msg, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(userPrompt)})
	if err != nil {
		classified := ClassifyError(err)
		s.metrics.RecordBackendCall(ctx, name, outcome(classified), time.Since(started))
		return Reply{}, classified
	}
	s.metrics.RecordBackendCall(ctx, name, "ok", time.Since(started))
	return Reply{Text: msg.Content, Model: name}, nil
}

func (s *Service) generateWith(ctx context.Context, name string, req Request) (string, error) {
	chatModel, err := s.factory(ctx, req.Credential, name)
	if err != nil {
		return "", fmt.Errorf("failed to create chat model: %w", err)
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(s.template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to compile chat chain: %w", err)
	}

	response, err := runnable.Invoke(ctx, buildChainInput(req))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", errors.New("model returned an empty reply")
	}
	return response.Content, nil
}

func buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  req.Instruction,
		"history": buildHistoryMessages(req.History),
		"query":   req.Prompt,
	}
}

// buildHistoryMessages converts the whole prior exchange sequence; nothing is
// truncated.
func buildHistoryMessages(exchanges []chat.Exchange) []*schema.Message {
	history := make([]*schema.Message, 0, len(exchanges))
	for _, ex := range exchanges {
		switch ex.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(ex.Text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(ex.Text, nil))
		}
	}
	return history
}

func outcome(err error) string {
	switch {
	case errors.Is(err, broker.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, broker.ErrUnauthorized):
		return "unauthorized"
	default:
		return "unknown"
	}
}
