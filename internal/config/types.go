package config

// Config is the optional file-based configuration. Every section may be
// omitted; Defaults fills the gaps. Secrets never live here (see Secrets).
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Poll      PollConfig      `json:"poll"`
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Debug     DebugConfig     `json:"debug,omitempty"`
}

// PracticumConfig controls the homework status API client.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type PracticumConfig struct {
	Endpoint       string `json:"endpoint,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"` // default: "30s"
	// Lookback moves the initial watermark into the past ("0s" = start from now).
	Lookback string `json:"lookback,omitempty"`
}

// PollConfig controls the polling cadence.
//
// Interval accepts a Go duration ("10m"), HH:MM ("00:10") or a cron
// expression ("*/10 * * * *", "cron: 0 */2 * * *").
type PollConfig struct {
	Interval string `json:"interval,omitempty"` // default: "10m"
}

type TelegramConfig struct {
	// PollTimeout is the long-poll timeout for inbound commands.
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Commands enables /status and /history in the configured chat.
	Commands bool `json:"commands"`
	// ThreadID targets a forum topic inside the chat (0 = main thread).
	ThreadID int `json:"thread_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors error logs into the notification chat. Poll
// failures are left out: the loop already reports them there, deduplicated.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional delivery journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./homeworkbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DebugConfig controls the optional pprof + metrics HTTP server.
//
// Prefer binding to localhost. A non-loopback address requires a token or
// allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Metrics       *bool  `json:"metrics,omitempty"` // default: true
}

const (
	DefaultRequestTimeout = "30s"
	DefaultPollInterval   = "10m"
	DefaultPollTimeout    = "10s"
	DefaultDebugAddr      = "127.0.0.1:6060"
)

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Practicum.RequestTimeout == "" {
		c.Practicum.RequestTimeout = DefaultRequestTimeout
	}
	if c.Poll.Interval == "" {
		c.Poll.Interval = DefaultPollInterval
	}
	if c.Telegram.PollTimeout == "" {
		c.Telegram.PollTimeout = DefaultPollTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		c.Logging.Console = true
	}
	if c.Debug.Addr == "" {
		c.Debug.Addr = DefaultDebugAddr
	}
}

// MetricsEnabled reports whether /metrics is served by the debug server.
func (d DebugConfig) MetricsEnabled() bool {
	return d.Metrics == nil || *d.Metrics
}
