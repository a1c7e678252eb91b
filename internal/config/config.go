package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/model/persona"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Store     StoreConfig
	Stream    StreamConfig
	Twitch    TwitchConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Store:  storeCfg,
		Stream: StreamConfig{
			PersonaID:    getEnvOrDefault("PERSONA_ID", persona.DefaultID),
			DefaultTitle: getEnvOrDefault("DEFAULT_STREAM_TITLE", live.DefaultStreamTitle),
		},
		Twitch: TwitchConfig{
			Channel:     strings.TrimPrefix(strings.TrimSpace(os.Getenv("TWITCH_CHANNEL")), "#"),
			BotUsername: strings.TrimSpace(os.Getenv("TWITCH_BOT_USERNAME")),
			OAuthToken:  strings.TrimSpace(os.Getenv("TWITCH_OAUTH_TOKEN")),
			SessionID:   strings.TrimSpace(os.Getenv("TWITCH_SESSION_ID")),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := parseListEnv("CORS_ALLOWED_ORIGINS")

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AI providers.
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIKey != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// NewOpenAIModel 创建 OpenAI 兼容的 langchaingo 模型。
func (c AIConfig) NewOpenAIModel() (llms.Model, error) {
	if c.Provider != ProviderOpenAI || !c.Enabled() {
		return nil, fmt.Errorf("OpenAI 凭证缺失，请设置 OPENAI_API_KEY")
	}

	opts := []openai.Option{
		openai.WithModel(c.OpenAIModel),
		openai.WithToken(c.OpenAIKey),
	}
	if c.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.OpenAIBaseURL))
	}
	return openai.New(opts...)
}

// CallOptions 返回 langchaingo 调用参数。
func (c AIConfig) CallOptions() []llms.CallOption {
	var opts []llms.CallOption
	if c.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*c.Temperature))
	}
	if c.TopP != nil {
		opts = append(opts, llms.WithTopP(*c.TopP))
	}
	if c.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*c.MaxTokens))
	}
	return opts
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: expected %s or %s", provider, ProviderArk, ProviderOpenAI)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:      provider,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
	}, nil
}

// StoreConfig 描述持久化配置。
type StoreConfig struct {
	Driver string
	DSN    string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", "sqlite"))
	switch driver {
	case "sqlite", "postgres", "memory":
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q", driver)
	}

	dsn := strings.TrimSpace(os.Getenv("STORE_DSN"))
	if dsn == "" && driver == "sqlite" {
		dsn = "file:aituber.db"
	}
	if dsn == "" && driver == "postgres" {
		return StoreConfig{}, fmt.Errorf("STORE_DSN is required when STORE_DRIVER=postgres")
	}
	return StoreConfig{Driver: driver, DSN: dsn}, nil
}

// StreamConfig 描述配信相关默认值。
type StreamConfig struct {
	PersonaID    string
	DefaultTitle string
}

// TwitchConfig 描述 Twitch 聊天接入配置。
type TwitchConfig struct {
	Channel     string
	BotUsername string
	OAuthToken  string
	SessionID   string
}

// Enabled 只要指定频道即可匿名接入；提供凭证时以机器人身份登录。
func (c TwitchConfig) Enabled() bool {
	return c.Channel != ""
}

// Anonymous 表示没有提供登录凭证。
func (c TwitchConfig) Anonymous() bool {
	return c.BotUsername == "" || c.OAuthToken == ""
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

// TelemetryConfig 描述链路追踪配置。
type TelemetryConfig struct {
	OTLPEndpoint string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
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
