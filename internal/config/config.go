// Package config handles loading and validating the moodshift configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the moodshift daemon.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Transports   TransportsConfig   `mapstructure:"transports"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Settings     SettingsConfig     `mapstructure:"settings"`
	LLM          LLMConfig          `mapstructure:"llm"`
	AWS          AWSConfig          `mapstructure:"aws"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings and the public base
// URL that audio locators are built from.
type ServerConfig struct {
	HealthPort int    `mapstructure:"health_port"`
	PublicURL  string `mapstructure:"public_url"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NATSConfig configures the JetStream connection and bucket names.
type NATSConfig struct {
	URL      string `mapstructure:"url"`
	Embedded bool   `mapstructure:"embedded"`  // run an in-process server instead of dialing URL
	StoreDir string `mapstructure:"store_dir"` // JetStream storage for the embedded server

	AudioBucket        string `mapstructure:"audio_bucket"`
	StatsBucket        string `mapstructure:"stats_bucket"`
	ConfigBucket       string `mapstructure:"config_bucket"`
	ConversationBucket string `mapstructure:"conversation_bucket"`
}

// ConversationConfig selects the conversation store backend.
type ConversationConfig struct {
	Backend     string `mapstructure:"backend"` // "kv" or "sqlite"
	SQLitePath  string `mapstructure:"sqlite_path"`
	MaxMessages int    `mapstructure:"max_messages"`
}

// SettingsConfig tunes the runtime settings cache.
type SettingsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LLMConfig holds the model credentials and the optional secondary provider.
// Model parameters themselves live in the runtime settings store.
type LLMConfig struct {
	APIKey    string          `mapstructure:"api_key"`
	Secondary SecondaryConfig `mapstructure:"secondary"`
}

// SecondaryConfig configures a self-hosted Ollama model tried after the
// primary provider fails.
type SecondaryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"` // Ollama model name (e.g., "llama3.2:1b")
}

// AWSConfig holds the speech provider credentials.
type AWSConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"` // overrides https://polly.{region}.amazonaws.com
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./moodshift.yaml, ./configs/moodshift.yaml, /etc/moodshift/moodshift.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.embedded", true)
	v.SetDefault("nats.store_dir", "./data/jetstream")
	v.SetDefault("nats.audio_bucket", "moodshift-audio")
	v.SetDefault("nats.stats_bucket", "moodshift-stats")
	v.SetDefault("nats.config_bucket", "moodshift-config")
	v.SetDefault("nats.conversation_bucket", "moodshift-conversations")
	v.SetDefault("conversation.backend", "kv")
	v.SetDefault("conversation.sqlite_path", "./data/conversations.db")
	v.SetDefault("conversation.max_messages", 8)
	v.SetDefault("settings.ttl", "5m")
	v.SetDefault("llm.api_key", "${GROQ_API_KEY}")
	v.SetDefault("llm.secondary.enabled", false)
	v.SetDefault("llm.secondary.endpoint", "http://localhost:11434/api/chat")
	v.SetDefault("llm.secondary.model", "llama3.2:1b")
	v.SetDefault("aws.access_key", "${AWS_ACCESS_KEY_ID}")
	v.SetDefault("aws.secret_key", "${AWS_SECRET_ACCESS_KEY}")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("moodshift")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/moodshift")
	}

	// Environment variables: MOODSHIFT_SERVER_PUBLIC_URL, MOODSHIFT_NATS_URL, etc.
	v.SetEnvPrefix("MOODSHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional: env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${GROQ_API_KEY}")
	cfg.LLM.APIKey = resolveEnvRef(cfg.LLM.APIKey)
	cfg.AWS.AccessKey = resolveEnvRef(cfg.AWS.AccessKey)
	cfg.AWS.SecretKey = resolveEnvRef(cfg.AWS.SecretKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Conversation.Backend {
	case "kv", "sqlite":
	default:
		return fmt.Errorf("conversation.backend must be \"kv\" or \"sqlite\", got %q", c.Conversation.Backend)
	}
	if c.Conversation.MaxMessages < 2 || c.Conversation.MaxMessages%2 != 0 {
		return fmt.Errorf("conversation.max_messages must be an even number of at least 2, got %d", c.Conversation.MaxMessages)
	}
	if !c.NATS.Embedded && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required unless nats.embedded is set")
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to "".
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	slog.SetDefault(slog.New(NewHandler(cfg, os.Stdout)))
}
