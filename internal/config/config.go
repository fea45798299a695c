package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	LLMProviderGenAI  = "genai"
	LLMProviderStatic = "static"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
	Vacation struct {
		DefaultDays int
	}
	Storage struct {
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		URLTTLMinutes int
	}
	AWS struct {
		Profile string
	}
	LLM struct {
		Provider        string
		APIKey          string
		Model           string
		Temperature     float32
		MaxOutputTokens int
		HistoryLimit    int
	}
	Chat struct {
		RulesFile string
	}
	Publisher struct {
		MaxConcurrent int
	}
	Telegram struct {
		Token  string
		ChatID int64
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// .env values never override the real environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/pulse.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 480)
	v.SetDefault("vacation.defaultdays", 22)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "payslips")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.urlttlminutes", 15)
	v.SetDefault("aws.profile", "")
	v.SetDefault("llm.provider", LLMProviderStatic)
	v.SetDefault("llm.apikey", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.maxoutputtokens", 1024)
	v.SetDefault("llm.historylimit", 20)
	v.SetDefault("chat.rulesfile", "")
	v.SetDefault("publisher.maxconcurrent", 2)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chatid", 0)
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth jwt secret is required"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	switch c.LLM.Provider {
	case LLMProviderStatic:
	case LLMProviderGenAI:
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			errs = append(errs, errors.New("llm api key is required for the genai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram chat id is required when a bot token is set"))
	}
	return errors.Join(errs...)
}
