package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/codetutor/backend/internal/logging"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/service/ai/gemini"
)

// Provider 选择生成后端。
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderArk    Provider = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server         ServerConfig
	Broker         BrokerConfig
	AI             AIConfig
	Log            logging.Config
	MetricsEnabled bool
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	brokerCfg, err := loadBrokerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	development, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return nil, err
	}

	metrics, err := parseBoolEnv("METRICS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Broker: brokerCfg,
		AI:     ai,
		Log: logging.Config{
			Level:       getEnvOrDefault("LOG_LEVEL", "info"),
			Development: development,
		},
		MetricsEnabled: metrics,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// BrokerConfig 描述共享凭证池与凭证格式校验。
type BrokerConfig struct {
	SharedCredentials []string
	Format            credential.Format
}

type sharedCredentialsFile struct {
	Credentials []string `yaml:"credentials"`
}

func loadBrokerConfig() (BrokerConfig, error) {
	format := credential.DefaultFormat()
	if prefix, ok := os.LookupEnv("CREDENTIAL_PREFIX"); ok {
		format.Prefix = strings.TrimSpace(prefix)
	}

	minLength, err := parseOptionalIntEnv("CREDENTIAL_MIN_LENGTH")
	if err != nil {
		return BrokerConfig{}, err
	}
	if minLength != nil {
		if *minLength < 1 {
			return BrokerConfig{}, fmt.Errorf("invalid CREDENTIAL_MIN_LENGTH value %d", *minLength)
		}
		format.MinLength = *minLength
	}

	shared := splitList(os.Getenv("SHARED_CREDENTIALS"))

	// 文件中的凭证追加在环境变量之后，顺序即轮询顺序。
	if path := strings.TrimSpace(os.Getenv("SHARED_CREDENTIALS_FILE")); path != "" {
		fromFile, err := loadSharedCredentialsFile(path)
		if err != nil {
			return BrokerConfig{}, err
		}
		shared = append(shared, fromFile...)
	}

	return BrokerConfig{SharedCredentials: shared, Format: format}, nil
}

func loadSharedCredentialsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SHARED_CREDENTIALS_FILE: %w", err)
	}

	var doc sharedCredentialsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse SHARED_CREDENTIALS_FILE %s: %w", path, err)
	}

	out := make([]string, 0, len(doc.Credentials))
	for _, c := range doc.Credentials {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// AIConfig 描述大模型相关配置。凭证不在这里：每次调用由路由按模式选出。
type AIConfig struct {
	Provider      Provider
	Model         string
	FallbackModel string
	BaseURL       string
	Region        string
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
}

// Models 返回主模型与可选的备用模型。
func (c AIConfig) Models() []string {
	models := []string{c.Model}
	if c.FallbackModel != "" && c.FallbackModel != c.Model {
		models = append(models, c.FallbackModel)
	}
	return models
}

// NewChatModel 使用给定凭证与模型名创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, apiKey, modelName string) (model.ChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	if modelName == "" {
		modelName = c.Model
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case ProviderArk:
		var topP *float32
		if c.TopP != nil {
			val := float32(*c.TopP)
			topP = &val
		}

		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      apiKey,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderGemini, "":
		return gemini.NewChatModel(ctx, gemini.Config{
			APIKey:      apiKey,
			Model:       modelName,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := Provider(strings.ToLower(getEnvOrDefault("AI_PROVIDER", string(ProviderGemini))))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:    provider,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	if provider == ProviderArk {
		topP, err := parseOptionalFloatEnv("ARK_TOP_P")
		if err != nil {
			return AIConfig{}, err
		}
		cfg.TopP = topP
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.FallbackModel = strings.TrimSpace(os.Getenv("ARK_FALLBACK_MODEL"))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
		if cfg.Model == "" {
			return AIConfig{}, errors.New("ARK_MODEL is required when AI_PROVIDER=ark")
		}
		return cfg, nil
	}

	cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.FallbackModel = strings.TrimSpace(os.Getenv("GEMINI_FALLBACK_MODEL"))
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
