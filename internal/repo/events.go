package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// DomainEvent is a persisted record of something that happened.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID string
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}

// Events persists domain events.
type Events struct {
	DB DB
}

// Insert stores an event and returns it with its assigned timestamp.
func (r Events) Insert(ctx context.Context, topic, aggregateID string, payload []byte) (DomainEvent, error) {
	id := NewUUID()
	row := r.DB.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, topic, aggregate_id, payload, occurred_at`,
		id, topic, aggregateID, payload)
	var ev DomainEvent
	err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}
