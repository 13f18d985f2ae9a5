package order

import "fmt"

// Status is the lifecycle state of an order.
//
// The forward path is DRAFT → SUBMITTED → CONFIRMED → SHIPPED → COMPLETED.
// CANCELLED is reachable from any non-terminal state, but only through the
// repository's bulk status update; there is no per-instance cancel.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every valid status value.
func Statuses() []Status {
	return []Status{
		StatusDraft,
		StatusSubmitted,
		StatusConfirmed,
		StatusShipped,
		StatusCompleted,
		StatusCancelled,
	}
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status: %q", raw)
	}
	return s, nil
}

// Valid reports whether the status is one of the enumerated values.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusConfirmed, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}
