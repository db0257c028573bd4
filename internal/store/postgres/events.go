package postgres

import (
	"context"

	"github.com/noah-isme/backend-resto/internal/events"
)

// InsertEvent appends ev to domain_events.
func (s *Store) InsertEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	if err := s.ready(); err != nil {
		return events.Event{}, err
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4::jsonb, $5)`, ev.ID, ev.Topic, ev.AggregateID, string(ev.Payload), ev.OccurredAt)
	if err != nil {
		return events.Event{}, mapErr(err)
	}
	return ev, nil
}
