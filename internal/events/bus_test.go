package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/events"
)

type stubStore struct {
	last events.Event
	err  error
}

func (s *stubStore) InsertEvent(_ context.Context, ev events.Event) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.last = ev
	return ev, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	aggregate := uuid.New()
	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, aggregate, map[string]any{"total": "13.00"})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, store.last.Topic)
	require.Equal(t, aggregate, store.last.AggregateID)
	require.JSONEq(t, `{"total":"13.00"}`, string(store.last.Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "13.00", decoded["total"])
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), []byte("{"))
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	first := &captureNotifier{err: errors.New("boom")}
	second := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{first, second}}
	ev, err := bus.Emit(context.Background(), events.TopicPaymentRecorded, uuid.New(), nil)
	require.ErrorContains(t, err, "boom")
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.Len(t, second.events, 1, "later notifiers still run")
}

func TestEmitStoreFailure(t *testing.T) {
	notifier := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{err: errors.New("db down")}, Notifiers: []events.Notifier{notifier}}
	aggregate := uuid.New()
	_, err := bus.Emit(context.Background(), events.TopicOrderDeleted, aggregate, nil)
	require.ErrorContains(t, err, "persist event")
	require.Len(t, notifier.events, 1, "notifiers still learn about the committed change")
	require.Equal(t, aggregate, notifier.events[0].AggregateID)
}

func TestIsFinancial(t *testing.T) {
	require.True(t, events.IsFinancial(events.TopicOrderUpdated))
	require.False(t, events.IsFinancial(events.TopicVATReturnSubmitted))
}
