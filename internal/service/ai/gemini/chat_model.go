// Package gemini adapts the Gemini API client to the eino chat model
// interface so it can sit in the same chain as any other provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Config selects the credential and model variant of one chat model.
type Config struct {
	APIKey      string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// ChatModel calls Gemini generateContent.
type ChatModel struct {
	models      *genai.Models
	model       string
	temperature *float32
	maxTokens   int32
}

var _ model.ChatModel = (*ChatModel)(nil)

// NewChatModel creates a Gemini-backed chat model.
func NewChatModel(ctx context.Context, cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	cm := &ChatModel{
		models:      client.Models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
	if cfg.MaxTokens != nil {
		cm.maxTokens = int32(*cfg.MaxTokens)
	}
	return cm, nil
}

// Generate sends input as one generateContent call. System messages become
// the system instruction; user and assistant messages become the contents.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	system, contents := toContents(input)
	if len(contents) == 0 {
		return nil, errors.New("gemini: no user content to send")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     m.temperature,
		MaxOutputTokens: m.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := m.models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini %s: %w", m.model, err)
	}
	return schema.AssistantMessage(resp.Text(), nil), nil
}

// Stream is not natively streamed; the full reply arrives as one chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools rejects tools; the broker never uses function calling.
func (m *ChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return errors.New("gemini chat model does not support tools")
	}
	return nil
}

func toContents(input []*schema.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents = make([]*genai.Content, 0, len(input))
	)
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			if strings.TrimSpace(msg.Content) != "" {
				system = append(system, msg.Content)
			}
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
