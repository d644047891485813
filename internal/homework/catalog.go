package homework

import (
	"sort"
	"strings"
)

// Review status codes reported by the API.
const (
	StatusApproved  = "approved"
	StatusReviewing = "reviewing"
	StatusRejected  = "rejected"
)

// NothingPending is sent when the polled window contains no homework updates.
const NothingPending = "No homework updates yet."

var defaultVerdicts = map[string]string{
	StatusApproved:  "The work has been reviewed: the reviewer liked everything. Hooray!",
	StatusReviewing: "The work has been taken for review.",
	StatusRejected:  "The work has been reviewed: the reviewer has comments.",
}

// Catalog maps status codes to notification text. It is immutable once built.
type Catalog struct {
	verdicts map[string]string
}

// DefaultCatalog returns the catalog for the statuses documented by the API.
func DefaultCatalog() Catalog { return NewCatalog(defaultVerdicts) }

// NewCatalog copies m so later changes to it don't leak into the catalog.
// Entries with a blank code or text are skipped.
func NewCatalog(m map[string]string) Catalog {
	cp := make(map[string]string, len(m))
	for code, text := range m {
		code = strings.TrimSpace(code)
		if code == "" || strings.TrimSpace(text) == "" {
			continue
		}
		cp[code] = text
	}
	return Catalog{verdicts: cp}
}

// Render returns the text for code or a *StatusError wrapping ErrUnknownStatus.
func (c Catalog) Render(code string) (string, error) {
	text, ok := c.verdicts[code]
	if !ok {
		return "", &StatusError{Code: code}
	}
	return text, nil
}

// Known reports whether code is in the catalog.
func (c Catalog) Known(code string) bool {
	_, ok := c.verdicts[code]
	return ok
}

// Codes returns the recognized codes in sorted order.
func (c Catalog) Codes() []string {
	out := make([]string, 0, len(c.verdicts))
	for code := range c.verdicts {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
