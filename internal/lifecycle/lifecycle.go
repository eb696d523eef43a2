// Package lifecycle defines the legal status transitions of a ticket.
package lifecycle

import (
	"errors"
	"fmt"

	"cleanup-quest-bot/internal/model"
)

// ErrInvalidTransition is wrapped by every TransitionError.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError names the rejected from/to pair.
type TransitionError struct {
	From model.TicketStatus
	To   model.TicketStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// transitions is the only source of truth for legal moves.
var transitions = map[model.TicketStatus]map[model.TicketStatus]bool{
	model.StatusReported: {
		model.StatusAccepted: true,
	},
	model.StatusAccepted: {
		model.StatusInProgress: true,
		model.StatusReported:   true,
	},
	model.StatusInProgress: {
		model.StatusValidating: true,
		model.StatusAccepted:   true,
	},
	model.StatusValidating: {
		model.StatusCompleted: true,
		model.StatusRejected:  true,
	},
	model.StatusRejected: {
		// Retry by the same cleaner. No bot command takes this edge; it is
		// kept for manual repair of a ticket stuck in rejected.
		model.StatusInProgress: true,
		// Reopen: a rejected cleanup goes back on the board.
		model.StatusReported: true,
	},
	model.StatusCompleted: {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to model.TicketStatus) bool {
	return transitions[from][to]
}

// Check returns a *TransitionError unless from -> to is legal.
func Check(from, to model.TicketStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Path validates a chain of moves starting at from and returns the final
// status. Nothing is applied unless every step is legal.
func Path(from model.TicketStatus, steps ...model.TicketStatus) (model.TicketStatus, error) {
	cur := from
	for _, next := range steps {
		if err := Check(cur, next); err != nil {
			return from, err
		}
		cur = next
	}
	return cur, nil
}

// Next lists the statuses reachable from s in one move.
func Next(s model.TicketStatus) []model.TicketStatus {
	var out []model.TicketStatus
	for _, to := range model.TicketStatuses() {
		if transitions[s][to] {
			out = append(out, to)
		}
	}
	return out
}

// IsTerminal reports whether no move leaves s.
func IsTerminal(s model.TicketStatus) bool {
	return len(Next(s)) == 0
}
