package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval matches the API's documented polling etiquette.
const DefaultInterval = 10 * time.Minute

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule turns a poll schedule string into a cron.Schedule.
//
// Supported forms:
//   - Go duration: "10m", "90s" (fixed interval)
//   - HH:MM interval: "00:10" (10 minutes)
//   - Cron: "*/10 * * * *", "@every 10m", or any string prefixed with "cron:"
//
// An empty string yields DefaultInterval.
func ParseSchedule(raw string) (cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return cron.Every(DefaultInterval), nil
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return nil, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(expr)
	}
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	d, err := parseInterval(s)
	if err != nil {
		return nil, err
	}
	return cron.Every(d), nil
}

func parseCron(expr string) (cron.Schedule, error) {
	sch, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return sch, nil
}

func parseInterval(s string) (time.Duration, error) {
	if m := reHHMM.FindStringSubmatch(s); len(m) == 3 {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		return d, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or a cron expression)", s)
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be >= 1s")
	}
	return d, nil
}
