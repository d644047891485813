package config

import (
	"reflect"
	"strings"

	logx "homeworkbot/pkg/logx"
)

// liveSections can be applied without restarting the process.
var liveSections = map[string]bool{"logging": true}

// SummarizeConfigChange returns the changed top-level sections, safe log
// attrs (never secrets), and the sections that only take effect after a
// restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
		if !liveSections[section] {
			restart = append(restart, section)
		}
	}

	if oldCfg.Practicum != newCfg.Practicum {
		mark("practicum",
			logx.String("practicum.endpoint", newCfg.Practicum.Endpoint),
			logx.String("practicum.request_timeout", newCfg.Practicum.RequestTimeout),
			logx.String("practicum.lookback", newCfg.Practicum.Lookback),
		)
	}
	if strings.TrimSpace(oldCfg.Poll.Interval) != strings.TrimSpace(newCfg.Poll.Interval) {
		mark("poll", logx.String("poll.interval", newCfg.Poll.Interval))
	}
	if oldCfg.Telegram != newCfg.Telegram {
		mark("telegram",
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Bool("telegram.commands", newCfg.Telegram.Commands),
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		mark("storage", logx.String("storage.driver", driver))
	}
	// Compare the token by presence only; it is never logged.
	oldDbg, newDbg := oldCfg.Debug, newCfg.Debug
	tokenFlip := (oldDbg.Token != "") != (newDbg.Token != "")
	oldDbg.Token, newDbg.Token = "", ""
	if tokenFlip || !reflect.DeepEqual(oldDbg, newDbg) {
		mark("debug",
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Addr),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}
	return changed, attrs, restart
}
