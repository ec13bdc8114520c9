package order

import (
	"errors"
	"fmt"
)

// Order statuses. Fulfilment moves strictly forward; payment state is
// tracked separately and never gates a transition here.
const (
	StatusPending        = "PENDING"
	StatusProcessing     = "PROCESSING"
	StatusShipped        = "SHIPPED"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
	StatusCancelled      = "CANCELLED"
)

// ErrInvalidTransition rejects a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

var statusRank = map[string]int{
	StatusPending:        0,
	StatusProcessing:     1,
	StatusShipped:        2,
	StatusOutForDelivery: 3,
	StatusDelivered:      4,
}

// KnownStatus reports whether s is a recognised order status.
func KnownStatus(s string) bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func Terminal(s string) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition validates a lifecycle move. Forward steps go one rank at a
// time; CANCELLED is reachable only before fulfilment starts shipping.
func CanTransition(from, to string) error {
	if !KnownStatus(from) || !KnownStatus(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if Terminal(from) {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to == StatusCancelled {
		if from == StatusPending || from == StatusProcessing {
			return nil
		}
		return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidTransition, from)
	}
	if statusRank[to] != statusRank[from]+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
