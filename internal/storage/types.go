package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery records one send attempt. Keep it compact and schema-stable.
type Delivery struct {
	At      time.Time `json:"at"`
	CycleID string    `json:"cycle_id"`
	ChatID  int64     `json:"chat_id"`
	Kind    string    `json:"kind,omitempty"` // error kind of the cycle; empty for status notifications
	Text    string    `json:"text"`
	OK      bool      `json:"ok"`
	Error   string    `json:"err,omitempty"`
}

// Store is the persistence API used by the poll loop and bot commands.
type Store interface {
	AppendDelivery(ctx context.Context, d Delivery) error
	// RecentDeliveries returns up to n entries, newest first.
	RecentDeliveries(ctx context.Context, n int) ([]Delivery, error)
	Close() error
}
