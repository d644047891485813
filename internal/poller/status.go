package poller

import "time"

// Status is a read-only snapshot of the loop, for operators.
type Status struct {
	Watermark  int64
	LastSent   string
	LastSentAt time.Time

	Cycles           uint64
	Failures         uint64
	Deliveries       uint64
	DeliveryFailures uint64

	ConsecutiveFailures int
	LastError           string
	LastAttempt         time.Time
	LastSuccess         time.Time
}

// Healthy reports whether some cycle has succeeded and fewer than three
// cycles in a row have failed since.
func (s Status) Healthy() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}
