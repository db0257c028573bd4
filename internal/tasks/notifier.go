package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-resto/internal/events"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier turns financial events into background tasks. Tasks are unique
// for UniqueFor, so bursts of writes collapse into one run.
type Notifier struct {
	Client    Enqueuer
	Queue     string
	UniqueFor time.Duration
	Location  *time.Location
}

// Notify enqueues the tasks an event calls for.
func (n *Notifier) Notify(ctx context.Context, ev events.Event) error {
	if n == nil || n.Client == nil || !events.IsFinancial(ev.Topic) || ev.Topic == events.TopicSettingsUpdated {
		return nil
	}
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	at := eventTime(ev, loc)
	local := at.In(loc)

	var out []*asynq.Task
	if ev.Topic != events.TopicPaymentRecorded {
		t, err := NewVATRefreshTask(at)
		if err != nil {
			return err
		}
		out = append(out, t)
	}
	t, err := NewReportWarmTask(local.Year(), int(local.Month()))
	if err != nil {
		return err
	}
	out = append(out, t)

	var joined error
	for _, task := range out {
		if _, err := n.Client.EnqueueContext(ctx, task, n.options()...); err != nil && !isDuplicate(err) {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}

func (n *Notifier) options() []asynq.Option {
	var opts []asynq.Option
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	unique := n.UniqueFor
	if unique <= 0 {
		unique = 30 * time.Second
	}
	return append(opts, asynq.Unique(unique))
}

func isDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict)
}

// eventTime picks the business date an event affects: the order's creation,
// the purchase date, or failing those the time the event occurred.
func eventTime(ev events.Event, loc *time.Location) time.Time {
	var payload struct {
		CreatedAt *time.Time `json:"createdAt"`
		Date      string     `json:"date"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err == nil {
		if payload.CreatedAt != nil && !payload.CreatedAt.IsZero() {
			return *payload.CreatedAt
		}
		if d, err := time.ParseInLocation(time.DateOnly, payload.Date, loc); err == nil {
			return d
		}
	}
	return ev.OccurredAt
}
