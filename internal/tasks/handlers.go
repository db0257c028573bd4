package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/vat"
)

// Handlers processes tasks in the worker.
type Handlers struct {
	VAT     *vat.Service
	Reports *report.Service
	Audit   *audit.Service
}

// Register binds every task type on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVATRefresh, h.HandleVATRefresh)
	mux.HandleFunc(TypeReportWarm, h.HandleReportWarm)
}

// HandleVATRefresh regenerates the quarter's draft return, if there is one.
func (h *Handlers) HandleVATRefresh(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { obs.IncCounter(obs.TasksProcessedTotal, TypeVATRefresh, obs.Result(err)) }()
	var p VATRefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	ret, refreshed, err := h.VAT.RefreshDraft(ctx, p.At)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Time("at", p.At).Bool("refreshed", refreshed).Msg("vat draft refresh")
	if refreshed {
		meta, _ := json.Marshal(map[string]string{"periodId": ret.PeriodID.String(), "vatDue": ret.VATDue.StringFixed(2)})
		// The draft is already saved, so a lost audit entry must not retry the task.
		_ = h.Audit.RecordSystem(ctx, "vat_return.refresh", "vat_returns", ret.ID.String(), meta)
	}
	return nil
}

// HandleReportWarm builds the month's report so the next read is cached.
func (h *Handlers) HandleReportWarm(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { obs.IncCounter(obs.TasksProcessedTotal, TypeReportWarm, obs.Result(err)) }()
	var p ReportWarmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := h.Reports.Monthly(ctx, p.Year, p.Month); err != nil {
		return err
	}
	return nil
}
