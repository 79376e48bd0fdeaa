package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/wellness"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Simulator simulator.Config
	Seed      int64
	AI        AIConfig
}

// Load 读取可选的 YAML 配置文件，并用环境变量覆盖。path 为空时只使用环境变量与默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	defaults := simulator.DefaultConfig()

	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sim.reply_delay", defaults.ReplyDelay.String())
	v.SetDefault("sim.initial_score", defaults.InitialScore)
	v.SetDefault("sim.min_score", defaults.Bounds.Min)
	v.SetDefault("sim.max_score", defaults.Bounds.Max)
	v.SetDefault("sim.max_delta", defaults.MaxDelta)
	v.SetDefault("sim.seed", 0)
	v.SetDefault("sim.replies", defaults.Replies)

	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.access_key", "")
	v.SetDefault("ark.secret_key", "")
	v.SetDefault("ark.model", "")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark.region", "cn-beijing")
	v.SetDefault("ark.temperature", "")
	v.SetDefault("ark.max_tokens", "")
	v.SetDefault("ai.history_limit", 10)
	v.SetDefault("ai.timeout", (20 * time.Second).String())
}

func fromViper(v *viper.Viper) (*Config, error) {
	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig(v)
	if err != nil {
		return nil, err
	}

	sim, err := loadSimulatorConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Log:       logCfg,
		Simulator: sim,
		Seed:      v.GetInt64("sim.seed"),
		AI:        ai,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("port"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig(v *viper.Viper) (LogConfig, error) {
	format := strings.ToLower(strings.TrimSpace(v.GetString("log.format")))
	switch format {
	case "json", "console":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q: want json or console", format)
	}
	return LogConfig{
		Level:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		Format: format,
	}, nil
}

// loadSimulatorConfig 解析聊天模拟器参数，并校验分数边界与回复目录。
func loadSimulatorConfig(v *viper.Viper) (simulator.Config, error) {
	replies, err := parseReplies(v.Get("sim.replies"))
	if err != nil {
		return simulator.Config{}, err
	}

	delay, err := parseDuration(v, "sim.reply_delay")
	if err != nil {
		return simulator.Config{}, err
	}

	cfg := simulator.Config{
		ReplyDelay:   delay,
		Replies:      replies,
		InitialScore: v.GetInt("sim.initial_score"),
		Bounds: wellness.Bounds{
			Min: v.GetInt("sim.min_score"),
			Max: v.GetInt("sim.max_score"),
		},
		MaxDelta: v.GetInt("sim.max_delta"),
	}
	if err := cfg.Validate(); err != nil {
		return simulator.Config{}, err
	}
	return cfg, nil
}

// parseReplies 接受 YAML 列表或以 "|" 分隔的环境变量字符串。
func parseReplies(raw any) ([]string, error) {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.Split(val, "|")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid SIM_REPLIES entry %v: want string", item)
			}
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("invalid SIM_REPLIES value of type %T", raw)
	}

	replies := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			replies = append(replies, trimmed)
		}
	}
	if len(replies) == 0 {
		return nil, errors.New("SIM_REPLIES must contain at least one reply")
	}
	return replies, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	MaxTokens    *int
	HistoryLimit int
	Timeout      time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
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
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, "ark.temperature")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ark.max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDuration(v, "ai.timeout")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := v.GetInt("ai.history_limit")
	if historyLimit < 1 {
		historyLimit = 1
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(v.GetString("ark.api_key")),
		AccessKey:    strings.TrimSpace(v.GetString("ark.access_key")),
		SecretKey:    strings.TrimSpace(v.GetString("ark.secret_key")),
		Model:        strings.TrimSpace(v.GetString("ark.model")),
		BaseURL:      strings.TrimSpace(v.GetString("ark.base_url")),
		Region:       strings.TrimSpace(v.GetString("ark.region")),
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,
		Timeout:      timeout,
	}, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", envName(key), value, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", envName(key), value, err)
	}
	return &val, nil
}

// parseDuration 接受 Go 时长字符串（如 "1.5s"），纯数字按毫秒处理。
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return 0, nil
	}

	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: want milliseconds or a duration like 1500ms: %w", envName(key), value, err)
	}
	return d, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
