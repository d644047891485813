package homework

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Record is one homework entry from the API.
type Record struct {
	Name        string `json:"homework_name"`
	Status      string `json:"status"`
	DateUpdated string `json:"date_updated"`
}

const dateLayout = "2006-01-02 15:04:05"

var upperLetters = regexp.MustCompile(`[A-Z]`)

// ParseRecord validates a raw record. An undocumented status is reported
// before any missing field since it is the most actionable failure.
func ParseRecord(catalog Catalog, raw json.RawMessage) (Record, error) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err == nil {
		if status, ok := probe["status"].(string); ok && !catalog.Known(status) {
			return Record{}, &StatusError{Code: status}
		}
	}
	if err := checkShape(recordSchema, raw); err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, &ShapeError{Field: rootField, Reason: err.Error()}
	}
	return rec, nil
}

// Extract turns a raw record into notification text.
func Extract(catalog Catalog, raw json.RawMessage) (string, error) {
	rec, err := ParseRecord(catalog, raw)
	if err != nil {
		return "", err
	}
	return Render(catalog, rec)
}

// Render formats a parsed record.
func Render(catalog Catalog, rec Record) (string, error) {
	verdict, err := catalog.Render(rec.Status)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("changed status of review for \"%s\". %s", rec.Name, verdict)
	if date := NormalizeDate(rec.DateUpdated); date != "" {
		msg = date + " " + msg
	}
	return msg, nil
}

// NormalizeDate formats RFC 3339 timestamps as UTC "2006-01-02 15:04:05".
// Anything else gets the legacy treatment: uppercase separators become
// spaces and runs of whitespace collapse.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format(dateLayout)
	}
	return strings.Join(strings.Fields(upperLetters.ReplaceAllString(raw, " ")), " ")
}
