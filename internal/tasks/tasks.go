// Package tasks defines the background jobs run by the worker: refreshing
// draft VAT returns and pre-building monthly reports after financial writes.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeVATRefresh = "vat:refresh_draft"
	TypeReportWarm = "report:warm_month"
)

// VATRefreshPayload names the instant whose quarter should be refreshed.
type VATRefreshPayload struct {
	At time.Time `json:"at"`
}

// ReportWarmPayload names the month to pre-build.
type ReportWarmPayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewVATRefreshTask builds a refresh task for the quarter containing at.
func NewVATRefreshTask(at time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(VATRefreshPayload{At: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TypeVATRefresh, err)
	}
	return asynq.NewTask(TypeVATRefresh, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// NewReportWarmTask builds a warm-up task for one month.
func NewReportWarmTask(year, month int) (*asynq.Task, error) {
	payload, err := json.Marshal(ReportWarmPayload{Year: year, Month: month})
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TypeReportWarm, err)
	}
	return asynq.NewTask(TypeReportWarm, payload, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}
