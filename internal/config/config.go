package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBusinessRequirements 未提供业务约束时使用的两条默认要求
const DefaultBusinessRequirements = "1. Схема должна быть грамотная и удобная для чтения. 2. Если возможно какой-то комплексный блок разбить на меньшие блоки - сделай это"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// LLMConfig OpenAI 兼容的 chat-completions 接口配置
type LLMConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	Stream       bool          `mapstructure:"stream"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type PipelineConfig struct {
	BusinessRequirements string        `mapstructure:"business_requirements"`
	AutoRecommendations  bool          `mapstructure:"auto_recommendations"`
	MaxRecommendations   int           `mapstructure:"max_recommendations"`
	RenderMaxAttempts    int           `mapstructure:"render_max_attempts"`
	RenderDelay          time.Duration `mapstructure:"render_delay"`
}

type RendererConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Format  string        `mapstructure:"format"`
	WorkDir string        `mapstructure:"work_dir"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Archive 为 true 时渲染结果落盘到 storage.data_dir/diagrams
	Archive bool `mapstructure:"archive"`
}

type OCRConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	TesseractCommand string        `mapstructure:"tesseract_command"`
	PdftoppmCommand  string        `mapstructure:"pdftoppm_command"`
	Languages        string        `mapstructure:"languages"`
	DPI              int           `mapstructure:"dpi"`
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type StorageConfig struct {
	Type       string         `mapstructure:"type"`
	DataDir    string         `mapstructure:"data_dir"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.debug_request", false)
	v.SetDefault("llm.base_url", "https://llm.chutes.ai/v1/chat/completions")
	v.SetDefault("llm.model", "deepseek-ai/DeepSeek-V3-0324")
	v.SetDefault("llm.system_prompt", "Ты бизнес-консультант. Твоя цель - помощь в построении BPMN диаграммы по информации от пользователя.")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.stream", true)
	v.SetDefault("llm.timeout", 5*time.Minute)

	v.SetDefault("pipeline.business_requirements", DefaultBusinessRequirements)
	v.SetDefault("pipeline.auto_recommendations", true)
	v.SetDefault("pipeline.max_recommendations", 5)
	v.SetDefault("pipeline.render_max_attempts", 3)
	v.SetDefault("pipeline.render_delay", time.Second)

	v.SetDefault("renderer.command", "piperflow-render")
	v.SetDefault("renderer.args", []string{"{input}", "{output}"})
	v.SetDefault("renderer.format", "png")
	v.SetDefault("renderer.timeout", 60*time.Second)
	v.SetDefault("renderer.work_dir", "")
	v.SetDefault("renderer.archive", false)

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.tesseract_command", "tesseract")
	v.SetDefault("ocr.pdftoppm_command", "pdftoppm")
	v.SetDefault("ocr.languages", "rus+eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_upload_bytes", 20<<20)
	v.SetDefault("ocr.timeout", 2*time.Minute)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "bpmn-backend")
	v.SetDefault("auth.access_token_ttl", 30*time.Minute)

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.sqlite_path", "./data/bpmn.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.user", "postgres")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.database", "bpmn")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.ssl_mode", "disable")
	v.SetDefault("storage.postgres.max_open_conns", 20)
	v.SetDefault("storage.postgres.max_idle_conns", 5)
	v.SetDefault("storage.postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 60)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "bpmn-backend")
	v.SetDefault("tracing.sample_rate", 1.0)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BPMN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 配置文件优先，如果配置文件中没有设置，则使用旧服务的环境变量
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("CHUTES_API_KEY")
	}
	if url := os.Getenv("CHUTES_API_URL"); url != "" && !v.InConfig("llm.base_url") {
		cfg.LLM.BaseURL = url
	}
	if model := os.Getenv("MODEL_ID"); model != "" && !v.InConfig("llm.model") {
		cfg.LLM.Model = model
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 检查启动所需的最小配置
func (c *Config) Validate() error {
	if c.Pipeline.RenderMaxAttempts < 1 {
		return fmt.Errorf("pipeline.render_max_attempts must be >= 1, got %d", c.Pipeline.RenderMaxAttempts)
	}
	if c.Pipeline.RenderDelay < 0 {
		return fmt.Errorf("pipeline.render_delay must not be negative")
	}
	switch c.Storage.Type {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	return nil
}
