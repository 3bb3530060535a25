package conf

import (
	"log/slog"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Config is read from the process environment, optionally seeded from a
// .env/.yaml/.toml file.
type Config struct {
	TelegramBotApiKey string        `env:"TELEGRAM_TOKEN" env-required:"true" env-description:"Bot API token"`
	ProxyURL          string        `env:"PROXY_URL" env-description:"Outbound proxy for Bot API and image downloads"`
	PollTimeout       time.Duration `env:"POLL_TIMEOUT" env-default:"10s" env-description:"Long polling timeout"`
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT" env-default:"15s" env-description:"Image download timeout"`
	MaxDownloadBytes  int64         `env:"MAX_DOWNLOAD_BYTES" env-default:"20971520" env-description:"Largest image accepted from a URL"`
	Workers           int           `env:"WORKERS" env-default:"0" env-description:"Concurrent image conversions, 0 for one per CPU"`
	MetricsAddr       string        `env:"METRICS_ADDR" env-description:"Listen address for /metrics, empty to disable"`
	LogLevel          string        `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	Trace             TraceConfig
}

type TraceConfig struct {
	Exporter     string `env:"TRACE_EXPORTER" env-default:"none" env-description:"none, stdout or otlp"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-description:"OTLP/HTTP collector host:port"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"false"`
}

// Load reads the configuration. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "read config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.TelegramBotApiKey) == "" {
		return errors.New("TELEGRAM_TOKEN is empty")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if c.MaxDownloadBytes <= 0 {
		return errors.New("MAX_DOWNLOAD_BYTES must be positive")
	}
	if _, err := c.Proxy(); err != nil {
		return err
	}
	return nil
}

// Proxy returns the parsed proxy URL, or nil when none is configured.
func (c *Config) Proxy() (*url.URL, error) {
	if c.ProxyURL == "" {
		return nil, nil
	}
	u, err := url.Parse(c.ProxyURL)
	if err != nil {
		return nil, errors.WithMessage(err, "parse PROXY_URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("PROXY_URL %q needs a scheme and host", c.ProxyURL)
	}
	return u, nil
}

func (c *Config) WorkerCount() int {
	if c.Workers < 1 {
		return runtime.NumCPU()
	}
	return c.Workers
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Usage describes the environment variables.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
