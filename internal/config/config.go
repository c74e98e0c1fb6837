package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Elastic    ElasticConfig
	AI         AIConfig
	Auth       AuthConfig
	Agent      AgentConfig
	Checkpoint CheckpointConfig
	Telemetry  TelemetryConfig
	Admission  AdmissionConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int `validate:"gt=0"`
	Mode         string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  []string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ElasticConfig Elasticsearch配置
type ElasticConfig struct {
	Host     string
	Username string
	Password string
}

// AIConfig AI配置
type AIConfig struct {
	Provider  string
	OpenAI    OpenAIConfig
	DeepSeek  DeepSeekConfig
	Embedding EmbeddingConfig
}

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// EmbeddingConfig Embedding配置
type EmbeddingConfig struct {
	Model      string
	APIKey     string
	Timeout    int
	Dimensions int
}

// AuthConfig 认证配置
// Secret 为空时启动阶段会生成随机密钥，令牌在重启后失效
type AuthConfig struct {
	Secret             string
	AccessTokenMinutes int `validate:"gt=0"`
	RefreshTokenDays   int `validate:"gt=0"`
}

// AccessTTL 访问令牌有效期
func (c *AuthConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// RefreshTTL 刷新令牌有效期
func (c *AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// AgentConfig Agent 注册表配置
type AgentConfig struct {
	DefaultAgent    string `validate:"required"`
	DefaultModel    string `validate:"required"`
	AvailableModels []string
	GuardModel      string
	MaxIterations   int
}

// CheckpointConfig 会话状态存储配置
type CheckpointConfig struct {
	Driver string `validate:"oneof=postgres redis memory"`
	TTL    int
}

// TTLDuration Redis 存储的过期时间，0 表示不过期
func (c *CheckpointConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// TelemetryConfig 反馈上报配置（LangSmith 兼容接口）
type TelemetryConfig struct {
	Endpoint string
	APIKey   string
	Timeout  int
}

// AdmissionConfig 招生知识库配置
type AdmissionConfig struct {
	Enabled      bool
	Index        string
	ChunkSize    int `validate:"gt=0"`
	ChunkOverlap int `validate:"gte=0,ltfield=ChunkSize"`
	TopK         int `validate:"gt=0"`
	BaseContext  string
}

// Load 加载配置
// path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXTAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-agent")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	// 流式响应可能持续较久，写超时为 0 表示不限制
	v.SetDefault("server.writeTimeout", 0)
	v.SetDefault("server.corsOrigins", []string{"*"})

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_agent")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Elastic
	v.SetDefault("elastic.host", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.apiKey", "")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.deepseek.apiKey", "")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.embedding.apiKey", "")
	v.SetDefault("ai.embedding.model", "text-embedding-v3")
	v.SetDefault("ai.embedding.dimensions", 1024)

	// Auth
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.accessTokenMinutes", 30)
	v.SetDefault("auth.refreshTokenDays", 7)

	// Agent
	v.SetDefault("agent.defaultAgent", "research-assistant")
	v.SetDefault("agent.defaultModel", "gpt-4o-mini")
	v.SetDefault("agent.availableModels", []string{"gpt-4o-mini", "gpt-4o"})
	v.SetDefault("agent.guardModel", "")
	v.SetDefault("agent.maxIterations", 10)

	// Checkpoint
	v.SetDefault("checkpoint.driver", "postgres")
	v.SetDefault("checkpoint.ttl", 0)

	// Telemetry
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.apiKey", "")
	v.SetDefault("telemetry.timeout", 10)

	// Admission
	v.SetDefault("admission.enabled", false)
	v.SetDefault("admission.index", "admission_docs")
	v.SetDefault("admission.chunkSize", 1000)
	v.SetDefault("admission.chunkOverlap", 200)
	v.SetDefault("admission.topK", 4)
	v.SetDefault("admission.baseContext", "")
}
