// Package config loads codecoach settings from defaults, an optional YAML
// file, CODECOACH_* environment variables and command-line flags, in
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/server"
	"github.com/abhisek/codecoach/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. CODECOACH_SERVER_ADDR.
const EnvPrefix = "CODECOACH"

const (
	serverDBName = "server.db"
	clientDBName = "client.db"
	logFileName  = "codecoach.log"
)

// Config is the resolved configuration of both halves of the binary.
type Config struct {
	Server ServerConfig
	Client ClientConfig
	LLM    llm.Config
	Log    LogConfig

	// SystemPrompt frames every completion request on the server.
	SystemPrompt string
}

// ServerConfig configures `codecoach serve`.
type ServerConfig struct {
	Addr string
	// DB is the problem database path. Empty means the XDG default.
	DB string
}

// ClientConfig configures the terminal client and scripting commands.
type ClientConfig struct {
	ServerURL string
	// StateDB holds the conversation history. Empty means the XDG default.
	StateDB string
	Timeout time.Duration
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// Loader wraps one viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with every default registered.
func NewLoader() *Loader {
	v := viper.New()

	def := llm.DefaultConfig()
	v.SetDefault("server.addr", "127.0.0.1:3000")
	v.SetDefault("server.db", "")
	v.SetDefault("client.server_url", "http://127.0.0.1:3000")
	v.SetDefault("client.state_db", "")
	v.SetDefault("client.timeout", 90*time.Second)
	v.SetDefault("llm.timeout", def.Timeout)
	v.SetDefault("llm.max_tokens", def.MaxTokens)
	v.SetDefault("llm.temperature", def.Temperature)
	v.SetDefault("llm.system_prompt", server.DefaultSystemPrompt)
	v.SetDefault("llm.openai.model", def.OpenAI.Model)
	v.SetDefault("llm.anthropic.model", def.Anthropic.Model)
	v.SetDefault("llm.gemini.model", def.Gemini.Model)
	v.SetDefault("llm.openrouter.model", def.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlag lets a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: no such flag", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file and resolves the configuration. An explicit
// path must exist; otherwise config.yaml under the user config directory is
// read when present.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(dir, "codecoach"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: l.v.GetString("server.addr"),
			DB:   l.v.GetString("server.db"),
		},
		Client: ClientConfig{
			ServerURL: l.v.GetString("client.server_url"),
			StateDB:   l.v.GetString("client.state_db"),
			Timeout:   l.v.GetDuration("client.timeout"),
		},
		LLM:          l.llmConfig(),
		SystemPrompt: l.v.GetString("llm.system_prompt"),
		Log: LogConfig{
			Level:  l.v.GetString("log.level"),
			Format: l.v.GetString("log.format"),
		},
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// File returns the config file in use, or "" when none was read.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) llmConfig() llm.Config {
	cfg := llm.Config{
		Provider: strings.ToLower(l.v.GetString("llm.provider")),
		OpenAI: llm.OpenAIConfig{
			APIKey:  l.v.GetString("llm.openai.api_key"),
			Model:   l.v.GetString("llm.openai.model"),
			BaseURL: l.v.GetString("llm.openai.base_url"),
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  l.v.GetString("llm.anthropic.api_key"),
			Model:   l.v.GetString("llm.anthropic.model"),
			BaseURL: l.v.GetString("llm.anthropic.base_url"),
		},
		Gemini: llm.GeminiConfig{
			APIKey:  l.v.GetString("llm.gemini.api_key"),
			Model:   l.v.GetString("llm.gemini.model"),
			BaseURL: l.v.GetString("llm.gemini.base_url"),
		},
		OpenRouter: llm.OpenRouterConfig{
			APIKey:  l.v.GetString("llm.openrouter.api_key"),
			Model:   l.v.GetString("llm.openrouter.model"),
			BaseURL: l.v.GetString("llm.openrouter.base_url"),
		},
		Timeout:     l.v.GetDuration("llm.timeout"),
		MaxTokens:   l.v.GetInt("llm.max_tokens"),
		Temperature: l.v.GetFloat64("llm.temperature"),
	}

	if cfg.Provider != "" {
		return cfg
	}
	cfg.Provider = llm.DefaultConfig().Provider
	if cfg.Validate() == nil {
		return cfg
	}

	// No provider chosen and no key for the default: fall back to the
	// vendors' standard variables.
	found, ok := llm.DiscoverConfig()
	if !ok {
		return cfg
	}
	cfg.Provider = found.Provider
	switch found.Provider {
	case "openai":
		cfg.OpenAI.APIKey = found.OpenAI.APIKey
	case "gemini":
		cfg.Gemini.APIKey = found.Gemini.APIKey
	case "anthropic":
		cfg.Anthropic.APIKey = found.Anthropic.APIKey
	case "openrouter":
		cfg.OpenRouter.APIKey = found.OpenRouter.APIKey
	}
	return cfg
}

// ServerOptions maps the configuration onto the HTTP server's settings.
func (c *Config) ServerOptions(version string) server.Config {
	return server.Config{
		Addr:         c.Server.Addr,
		Version:      version,
		SystemPrompt: c.SystemPrompt,
		ChatTimeout:  c.LLM.Timeout,
		MaxTokens:    c.LLM.MaxTokens,
		Temperature:  c.LLM.Temperature,
	}
}

// ServerDBPath resolves the problem database path.
func (c *Config) ServerDBPath() (string, error) {
	return dbPath(c.Server.DB, serverDBName)
}

// ClientDBPath resolves the client state database path.
func (c *Config) ClientDBPath() (string, error) {
	return dbPath(c.Client.StateDB, clientDBName)
}

// LogFilePath is where the terminal client writes its log.
func LogFilePath() (string, error) {
	dir, err := store.DataDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, logFileName)
	return p, store.EnsureDir(p)
}

func dbPath(configured, name string) (string, error) {
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath(name)
}

// WatchLogLevel re-reads log.level whenever the config file changes and
// applies it to level. It does nothing when no config file was read.
func (l *Loader) WatchLogLevel(level *slog.LevelVar, logger *slog.Logger) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		lv, err := ParseLevel(l.v.GetString("log.level"))
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		if lv != level.Level() {
			level.Set(lv)
			logger.Info("log level changed", "level", lv.String())
		}
	})
	l.v.WatchConfig()
}
