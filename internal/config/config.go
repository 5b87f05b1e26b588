package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the report persistence sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JinaConfig holds Jina AI Search settings. An empty key puts the research
// stage into its degraded no-network mode.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// GoogleConfig holds Google Places settings for contractor lookup (optional).
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OCRConfig configures document text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// ExtractConfig configures the finding-extraction stage.
type ExtractConfig struct {
	MaxDocChars int `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
}

// ResearchConfig configures the two-phase research orchestrator. The batch
// sizes and delays are tuned to the published rate ceilings of the external
// services; the defaults preserve the original tuning.
type ResearchConfig struct {
	SearchBatchSize       int `yaml:"search_batch_size" mapstructure:"search_batch_size"`
	SearchBatchDelayMS    int `yaml:"search_batch_delay_ms" mapstructure:"search_batch_delay_ms"`
	SynthesisBatchSize    int `yaml:"synthesis_batch_size" mapstructure:"synthesis_batch_size"`
	SynthesisBatchDelayMS int `yaml:"synthesis_batch_delay_ms" mapstructure:"synthesis_batch_delay_ms"`
	SnippetCharBudget     int `yaml:"snippet_char_budget" mapstructure:"snippet_char_budget"`
	CallTimeoutSecs       int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	MaxContractors        int `yaml:"max_contractors" mapstructure:"max_contractors"`
}

// SearchBatchDelay returns the Phase 1 inter-batch delay as a duration.
func (r ResearchConfig) SearchBatchDelay() time.Duration {
	return time.Duration(r.SearchBatchDelayMS) * time.Millisecond
}

// SynthesisBatchDelay returns the Phase 2 inter-batch delay as a duration.
func (r ResearchConfig) SynthesisBatchDelay() time.Duration {
	return time.Duration(r.SynthesisBatchDelayMS) * time.Millisecond
}

// CallTimeout returns the per-external-call timeout as a duration.
func (r ResearchConfig) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "inspect.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("extract.max_doc_chars", 15000)
	v.SetDefault("research.search_batch_size", 5)
	v.SetDefault("research.search_batch_delay_ms", 2000)
	v.SetDefault("research.synthesis_batch_size", 10)
	v.SetDefault("research.synthesis_batch_delay_ms", 500)
	v.SetDefault("research.snippet_char_budget", 4000)
	v.SetDefault("research.call_timeout_secs", 60)
	v.SetDefault("research.max_contractors", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
