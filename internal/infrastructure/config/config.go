// Package config loads ragchat settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// a .env file, then RAGCHAT_* environment variables. The result is validated
// before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "RAGCHAT_"

// Config is the full application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Chat    ChatConfig    `yaml:"chat"`
	Upload  UploadConfig  `yaml:"upload"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
}

// BackendConfig locates the RAG service.
type BackendConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ChatConfig tunes the conversation.
type ChatConfig struct {
	HistoryWindow int `yaml:"history_window" validate:"gte=1,lte=50"`
}

// UploadConfig bounds file selection.
type UploadConfig struct {
	Extensions []string `yaml:"extensions" validate:"min=1,dive,startswith=."`
	MaxSizeMB  int64    `yaml:"max_size_mb" validate:"gte=1"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	File   string `yaml:"file"`
}

// JournalConfig selects where transcripts are recorded.
type JournalConfig struct {
	Driver  string `yaml:"driver" validate:"oneof=sqlite memory none"`
	DataDir string `yaml:"data_dir" validate:"required_if=Driver sqlite"`
}

// ServerConfig configures the local HTTP surface.
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr" validate:"required_if=Enabled true"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WatchConfig configures the drop folder.
type WatchConfig struct {
	Dir    string        `yaml:"dir"`
	Settle time.Duration `yaml:"settle" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: 120 * time.Second,
		},
		Chat: ChatConfig{HistoryWindow: 6},
		Upload: UploadConfig{
			Extensions: []string{".pdf", ".docx", ".txt"},
			MaxSizeMB:  50,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Journal: JournalConfig{
			Driver:  "sqlite",
			DataDir: "./data",
		},
		Server: ServerConfig{
			Addr:           "localhost:8501",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Watch: WatchConfig{Settle: 500 * time.Millisecond},
	}
}

// Load builds and validates the configuration. path may be empty, in which
// case only defaults and the environment apply. A missing .env file is not
// an error.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated layers the configuration like Load but leaves validation
// to the caller, so command-line overrides can be applied first.
func LoadUnvalidated(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int64) {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("BACKEND_URL", &cfg.Backend.URL)
	dur("BACKEND_TIMEOUT", &cfg.Backend.Timeout)

	window := int64(cfg.Chat.HistoryWindow)
	integer("HISTORY_WINDOW", &window)
	cfg.Chat.HistoryWindow = int(window)

	list("UPLOAD_EXTENSIONS", &cfg.Upload.Extensions)
	integer("UPLOAD_MAX_SIZE_MB", &cfg.Upload.MaxSizeMB)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)

	str("JOURNAL_DRIVER", &cfg.Journal.Driver)
	str("DATA_DIR", &cfg.Journal.DataDir)

	boolean("SERVER_ENABLED", &cfg.Server.Enabled)
	str("SERVER_ADDR", &cfg.Server.Addr)
	list("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	str("WATCH_DIR", &cfg.Watch.Dir)
	dur("WATCH_SETTLE", &cfg.Watch.Settle)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
