package repository

import (
	"context"
	"fmt"

	"cleanup-quest-bot/internal/model"
)

// EventRepository stores the audit trail of ticket transitions.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new EventRepository instance.
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// Append records one applied transition.
func (r *EventRepository) Append(ctx context.Context, e *model.TicketEvent) error {
	const query = `
		INSERT INTO ticket_events (ticket_id, from_status, to_status, actor_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		e.TicketID, string(e.FromStatus), string(e.ToStatus), e.ActorID, e.Message,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ticket event: %w", err)
	}
	return nil
}

// ListByTicket returns a ticket's transitions in the order they were applied.
func (r *EventRepository) ListByTicket(ctx context.Context, ticketID string) ([]*model.TicketEvent, error) {
	const query = `
		SELECT id, ticket_id, from_status, to_status, actor_id, message, created_at
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket events: %w", err)
	}
	defer rows.Close()

	var events []*model.TicketEvent
	for rows.Next() {
		var e model.TicketEvent
		err := rows.Scan(&e.ID, &e.TicketID, &e.FromStatus, &e.ToStatus, &e.ActorID, &e.Message, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket events: %w", err)
	}

	return events, nil
}
