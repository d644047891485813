package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the values Defaults can't fix. It assumes defaults have
// been applied.
func (c *Config) Validate() error {
	var errs []error

	if ep := strings.TrimSpace(c.Practicum.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("practicum.endpoint: must be an absolute http(s) URL, got %q", ep))
		}
	}
	if d, err := ParseDurationField("practicum.request_timeout", c.Practicum.RequestTimeout); err != nil {
		errs = append(errs, err)
	} else if d == 0 {
		errs = append(errs, errors.New("practicum.request_timeout: must be > 0"))
	}
	if _, err := ParseDurationField("practicum.lookback", c.Practicum.Lookback); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Telegram.ThreadID < 0 {
		errs = append(errs, errors.New("telegram.thread_id: must be >= 0"))
	}

	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "disabled", "off":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(c.Storage.Path) == "" {
				errs = append(errs, errors.New("storage.path: required for file and sqlite drivers"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Debug.Enabled {
		if err := checkDebugAddr(c.Debug); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkDebugAddr(d DebugConfig) error {
	host, _, err := net.SplitHostPort(d.Addr)
	if err != nil {
		return fmt.Errorf("debug.addr: %w", err)
	}
	if isLoopback(host) || strings.TrimSpace(d.Token) != "" || d.AllowInsecure {
		return nil
	}
	return fmt.Errorf("debug.addr: %q is not loopback; set debug.token or debug.allow_insecure", d.Addr)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
