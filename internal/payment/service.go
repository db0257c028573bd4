package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// Service records payments and exposes the payment gate.
type Service struct {
	Store  Store
	Events events.Emitter
	Now    func() time.Time
}

// RecordInput describes a payment taken for an order.
type RecordInput struct {
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"required,oneof=cash card voucher bank_transfer other"`
	Status    Status          `json:"status" validate:"omitempty,oneof=completed pending failed"`
	Reference *string         `json:"reference"`
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("payment service not configured")
	}
	return nil
}

// HasPayment reports whether any payment references orderID.
func (s *Service) HasPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	paid, err := s.Store.HasPayment(ctx, orderID)
	if err != nil {
		return false, common.Internal("check payment", err)
	}
	return paid, nil
}

// Record appends a payment. Status defaults to completed.
func (s *Service) Record(ctx context.Context, orderID uuid.UUID, in RecordInput) (Payment, error) {
	if err := s.ready(); err != nil {
		return Payment{}, err
	}
	ctx, span := otel.Tracer("payment").Start(ctx, "payment.Record")
	defer span.End()

	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if in.Status == "" {
		in.Status = StatusCompleted
	}
	if err := common.Validate(in); err != nil {
		return Payment{}, err
	}
	if err := common.AtMostCents(map[string]*decimal.Decimal{"amount": &in.Amount}); err != nil {
		return Payment{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	p := Payment{
		ID:        uuid.New(),
		OrderID:   orderID,
		Amount:    in.Amount.Round(2),
		Method:    in.Method,
		Status:    in.Status,
		Reference: in.Reference,
		CreatedAt: now().UTC(),
	}
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.String("payment.method", p.Method))
	recorded, err := s.Store.RecordPayment(ctx, p)
	if err != nil {
		return Payment{}, common.FromStore("record payment", "order", err)
	}
	obs.IncCounter(obs.PaymentsRecordedTotal, recorded.Method, string(recorded.Status))
	if s.Events != nil {
		payload := map[string]any{
			"orderId": orderID.String(),
			"amount":  recorded.Amount.StringFixed(2),
			"status":  recorded.Status,
			"at":      recorded.CreatedAt,
		}
		if _, err := s.Events.Emit(ctx, events.TopicPaymentRecorded, orderID, payload); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", orderID.String()).Msg("emit payment.recorded")
		}
	}
	return recorded, nil
}

// List returns the payments for an order, oldest first.
func (s *Service) List(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	payments, err := s.Store.ListPayments(ctx, orderID)
	if err != nil {
		return nil, common.FromStore("list payments", "order", err)
	}
	return payments, nil
}
