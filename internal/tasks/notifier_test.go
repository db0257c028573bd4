package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/tasks"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func event(t *testing.T, topic string, payload any, at time.Time) events.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: uuid.New(), Payload: raw, OccurredAt: at}
}

func TestNotifierOrderEventEnqueuesBothTasks(t *testing.T) {
	q := &fakeEnqueuer{}
	n := &tasks.Notifier{Client: q}
	created := time.Date(2025, 3, 31, 22, 0, 0, 0, time.UTC)
	ev := event(t, events.TopicOrderUpdated, map[string]any{"createdAt": created}, created.AddDate(0, 1, 0))

	require.NoError(t, n.Notify(context.Background(), ev))
	require.Len(t, q.tasks, 2)

	require.Equal(t, tasks.TypeVATRefresh, q.tasks[0].Type())
	var vp tasks.VATRefreshPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &vp))
	require.True(t, vp.At.Equal(created))

	require.Equal(t, tasks.TypeReportWarm, q.tasks[1].Type())
	var rp tasks.ReportWarmPayload
	require.NoError(t, json.Unmarshal(q.tasks[1].Payload(), &rp))
	require.Equal(t, tasks.ReportWarmPayload{Year: 2025, Month: 3}, rp)
}

func TestNotifierUsesLocationForMonth(t *testing.T) {
	q := &fakeEnqueuer{}
	loc := time.FixedZone("UTC+3", 3*3600)
	n := &tasks.Notifier{Client: q, Location: loc}
	created := time.Date(2025, 3, 31, 22, 0, 0, 0, time.UTC)

	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicOrderCreated, map[string]any{"createdAt": created}, created)))
	var rp tasks.ReportWarmPayload
	require.NoError(t, json.Unmarshal(q.tasks[1].Payload(), &rp))
	require.Equal(t, 4, rp.Month)
}

func TestNotifierPurchaseUsesDate(t *testing.T) {
	q := &fakeEnqueuer{}
	n := &tasks.Notifier{Client: q}
	ev := event(t, events.TopicPurchaseRecorded, map[string]any{"date": "2024-12-30"}, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))

	require.NoError(t, n.Notify(context.Background(), ev))
	require.Len(t, q.tasks, 2)
	var vp tasks.VATRefreshPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &vp))
	require.Equal(t, 2024, vp.At.Year())
}

func TestNotifierPaymentWarmsReportOnly(t *testing.T) {
	q := &fakeEnqueuer{}
	n := &tasks.Notifier{Client: q}
	at := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)

	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicPaymentRecorded, map[string]any{"amount": "10.00"}, at)))
	require.Len(t, q.tasks, 1)
	require.Equal(t, tasks.TypeReportWarm, q.tasks[0].Type())
}

func TestNotifierIgnoresNonFinancialTopics(t *testing.T) {
	q := &fakeEnqueuer{}
	n := &tasks.Notifier{Client: q}
	at := time.Now()

	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicVATReturnSubmitted, nil, at)))
	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicSettingsUpdated, nil, at)))
	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicMenuItemChanged, nil, at)))
	require.Empty(t, q.tasks)
}

func TestNotifierSwallowsDuplicates(t *testing.T) {
	n := &tasks.Notifier{Client: &fakeEnqueuer{err: asynq.ErrDuplicateTask}}
	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicOrderCreated, map[string]any{}, time.Now())))

	boom := errors.New("redis down")
	n = &tasks.Notifier{Client: &fakeEnqueuer{err: boom}}
	require.ErrorIs(t, n.Notify(context.Background(), event(t, events.TopicOrderCreated, map[string]any{}, time.Now())), boom)
}
