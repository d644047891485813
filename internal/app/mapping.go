package app

import (
	"fmt"
	"strings"
	"time"

	"homeworkbot/internal/config"
	"homeworkbot/internal/observability/debug"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
	"homeworkbot/internal/storage"
	kit "homeworkbot/internal/transport"
	"homeworkbot/internal/transport/telegram"
	logx "homeworkbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none", "disabled", "off":
		return storage.Config{}, false, nil
	case "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, true, nil
}

// MapPracticumConfig builds the API client settings.
func MapPracticumConfig(cfg *config.Config, secrets config.Secrets) (practicum.Config, error) {
	timeout, err := config.ParseDurationOrDefault("practicum.request_timeout", cfg.Practicum.RequestTimeout, 30*time.Second)
	if err != nil {
		return practicum.Config{}, err
	}
	return practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    secrets.PracticumToken,
		Timeout:  timeout,
	}, nil
}

// MapPollerConfig builds the immutable loop settings.
func MapPollerConfig(cfg *config.Config, secrets config.Secrets) (poller.Config, error) {
	sched, err := poller.ParseSchedule(cfg.Poll.Interval)
	if err != nil {
		return poller.Config{}, fmt.Errorf("poll.interval: %w", err)
	}
	lookback, err := config.ParseDurationField("practicum.lookback", cfg.Practicum.Lookback)
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{
		Chat:     chatTarget(cfg, secrets),
		Schedule: sched,
		Lookback: lookback,
	}, nil
}

func mapTelegramConfig(cfg *config.Config, secrets config.Secrets) (telegram.Config, error) {
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       secrets.TelegramToken,
		PollTimeout: pollTimeout,
		Chat:        chatTarget(cfg, secrets),
	}, nil
}

func mapDebugConfig(cfg *config.Config) debug.Config {
	return debug.Config{
		Addr:          cfg.Debug.Addr,
		Token:         cfg.Debug.Token,
		AllowInsecure: cfg.Debug.AllowInsecure,
	}
}

func chatTarget(cfg *config.Config, secrets config.Secrets) kit.ChatTarget {
	return kit.ChatTarget{
		ChatID:   secrets.TelegramChatID,
		Username: secrets.TelegramChannel,
		ThreadID: cfg.Telegram.ThreadID,
	}
}
