package memory

import (
	"context"

	"github.com/noah-isme/backend-resto/internal/events"
)

// InsertEvent appends ev to the event log.
func (s *Store) InsertEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events = append(s.st.events, ev)
	return ev, nil
}

// Events returns the recorded events, oldest first.
func (s *Store) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event(nil), s.st.events...)
}
