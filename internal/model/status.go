package model

import (
	"fmt"
	"strings"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
)

// DeliveryStatus is the provider-reported state of a message.
type DeliveryStatus string

const (
	StatusReceived  DeliveryStatus = "received" // inbound messages only
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// rank orders the outbound lattice: sent < delivered < read. failed sits above all.
func (s DeliveryStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	case StatusFailed:
		return 4
	}
	return 0
}

// ParseDeliveryStatus validates a status reported by a provider callback.
func ParseDeliveryStatus(raw string) (DeliveryStatus, error) {
	s := DeliveryStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s.rank() == 0 {
		return "", fmt.Errorf("%w: unknown delivery status %q", apperrors.ErrValidation, raw)
	}
	return s, nil
}

// CanAdvance reports whether moving from the current status to next moves
// forward in the lattice. Repeats, regressions and anything after failed are rejected.
func CanAdvance(current, next DeliveryStatus) bool {
	if next.rank() == 0 || current == StatusFailed {
		return false
	}
	return next.rank() > current.rank()
}

// PrecedingStatuses returns every stored status from which next is reachable.
// The empty string covers rows that never received a status.
func PrecedingStatuses(next DeliveryStatus) []DeliveryStatus {
	out := []DeliveryStatus{""}
	for _, s := range []DeliveryStatus{StatusSent, StatusDelivered, StatusRead} {
		if CanAdvance(s, next) {
			out = append(out, s)
		}
	}
	return out
}
