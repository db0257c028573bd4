package order

import (
	"context"
	"errors"
	"strconv"
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
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// SettingsSource supplies the settings snapshot for one operation.
type SettingsSource interface {
	GetOrCreate(ctx context.Context) (settings.AccountingSettings, error)
}

// Service implements the order ledger operations.
type Service struct {
	Store    Store
	Settings SettingsSource
	Events   events.Emitter
	Now      func() time.Time
}

// ItemInput is one requested order line.
type ItemInput struct {
	MenuItemID   uuid.UUID `json:"menuItemId"`
	Quantity     int       `json:"quantity" validate:"gt=0"`
	Instructions *string   `json:"instructions"`
}

// CreateInput is the payload for a new order.
type CreateInput struct {
	TableID   *uuid.UUID  `json:"tableId"`
	StaffID   *uuid.UUID  `json:"staffId"`
	OrderType string      `json:"orderType" validate:"omitempty,oneof=dine_in takeaway delivery"`
	Notes     *string     `json:"notes"`
	Items     []ItemInput `json:"items" validate:"dive"`
}

// ItemPatch changes one order line. Nil fields are unchanged.
type ItemPatch struct {
	Quantity        *int             `json:"quantity" validate:"omitempty,gt=0"`
	Price           *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Instructions    *string          `json:"instructions"`
	ExpectedVersion *int64           `json:"-"`
}

// OrderPatch changes an order. Items, when present, replace the whole set.
type OrderPatch struct {
	Items           *[]ItemInput     `json:"items"`
	VATRate         *decimal.Decimal `json:"vatRate" validate:"omitempty,gte=0,lte=100"`
	ServiceCharge   *decimal.Decimal `json:"serviceCharge" validate:"omitempty,gte=0"`
	Discount        *decimal.Decimal `json:"discount" validate:"omitempty,gte=0"`
	Notes           *string          `json:"notes"`
	Status          *Status          `json:"status"`
	OrderType       *string          `json:"orderType" validate:"omitempty,oneof=dine_in takeaway delivery"`
	ExpectedVersion *int64           `json:"-"`
}

func (p OrderPatch) touchesFinancials() bool {
	return p.Items != nil || p.VATRate != nil || p.ServiceCharge != nil || p.Discount != nil
}

const errLocked = "order has payments and its items and amounts are locked"

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Settings == nil {
		return errors.New("order service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateOrder snapshots menu prices, computes totals from the settings
// snapshot and persists the order with all its items atomically.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (o Order, err error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	ctx, span := otel.Tracer("order").Start(ctx, "order.CreateOrder")
	defer span.End()
	defer func() { recordMutation("create", err) }()

	if err := validateItems(in.Items); err != nil {
		return Order{}, err
	}
	if err := common.Validate(in); err != nil {
		return Order{}, err
	}
	snapshot, err := s.Settings.GetOrCreate(ctx)
	if err != nil {
		return Order{}, err
	}
	if in.StaffID == nil {
		if id, ok := common.StaffID(ctx); ok {
			in.StaffID = &id
		}
	}
	orderType := in.OrderType
	if orderType == "" {
		orderType = TypeDineIn
	}

	now := s.now()
	o = Order{
		ID:        uuid.New(),
		TableID:   in.TableID,
		StaffID:   in.StaffID,
		OrderType: orderType,
		Notes:     trimmed(in.Notes),
		Status:    StatusPending,
		VATRate:   snapshot.StandardVATRate,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.Store.InTx(ctx, func(tx Tx) error {
		items, err := resolveItems(ctx, tx, o.ID, in.Items)
		if err != nil {
			return err
		}
		o.Items = items
		o.ServiceCharge = pricing.ServiceCharge(subtotalOf(items), snapshot.ServiceChargeRate)
		o = Recompute(o)
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		return Order{}, common.FromStore("create order", "order", err)
	}
	span.SetAttributes(attribute.String("order.id", o.ID.String()), attribute.String("order.total", o.Total.StringFixed(2)))
	s.emit(ctx, events.TopicOrderCreated, o)
	return o, nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, common.FromStore("get order", "order", err)
	}
	return o, nil
}

// List returns orders matching f, newest first, with the unpaged count.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, common.Validation("invalid status", map[string]string{"status": "unknown status"})
	}
	orders, total, err := s.Store.ListOrders(ctx, f)
	if err != nil {
		return nil, 0, common.Internal("list orders", err)
	}
	return orders, total, nil
}

// UpdateItem changes one line of an unpaid order and recomputes its totals.
func (s *Service) UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, patch ItemPatch) (o Order, err error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	ctx, span := otel.Tracer("order").Start(ctx, "order.UpdateItem")
	defer span.End()
	defer func() { recordMutation("update_item", err) }()

	if err := common.Validate(patch); err != nil {
		return Order{}, err
	}
	err = s.Store.InTx(ctx, func(tx Tx) error {
		current, err := s.lockUnpaid(ctx, tx, orderID, patch.ExpectedVersion)
		if err != nil {
			return err
		}
		idx := indexOfItem(current.Items, itemID)
		if idx < 0 {
			return common.NotFound("order item")
		}
		it := current.Items[idx]
		if patch.Quantity != nil {
			it.Quantity = *patch.Quantity
		}
		if patch.Price != nil {
			it.Price = patch.Price.Round(2)
		}
		if patch.Instructions != nil {
			it.Instructions = trimmed(patch.Instructions)
		}
		current.Items[idx] = it
		if err := tx.UpdateItem(ctx, it); err != nil {
			return err
		}
		o, err = s.save(ctx, tx, current)
		return err
	})
	if err != nil {
		return Order{}, common.FromStore("update order item", "order", err)
	}
	s.emit(ctx, events.TopicOrderUpdated, o)
	return o, nil
}

// DeleteItem removes one line from an unpaid order. The last remaining line
// cannot be removed; the order must be deleted instead.
func (s *Service) DeleteItem(ctx context.Context, orderID, itemID uuid.UUID, expectedVersion *int64) (o Order, err error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	ctx, span := otel.Tracer("order").Start(ctx, "order.DeleteItem")
	defer span.End()
	defer func() { recordMutation("delete_item", err) }()

	err = s.Store.InTx(ctx, func(tx Tx) error {
		current, err := s.lockUnpaid(ctx, tx, orderID, expectedVersion)
		if err != nil {
			return err
		}
		idx := indexOfItem(current.Items, itemID)
		if idx < 0 {
			return common.NotFound("order item")
		}
		if len(current.Items) == 1 {
			return common.Conflict("cannot delete the last item of an order; delete the order instead")
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return err
		}
		current.Items = append(current.Items[:idx:idx], current.Items[idx+1:]...)
		o, err = s.save(ctx, tx, current)
		return err
	})
	if err != nil {
		return Order{}, common.FromStore("delete order item", "order", err)
	}
	s.emit(ctx, events.TopicOrderUpdated, o)
	return o, nil
}

// UpdateOrder applies patch in one transaction. Items, rate, service charge
// and discount are rejected once the order has payments; notes, status and
// order type stay editable.
func (s *Service) UpdateOrder(ctx context.Context, orderID uuid.UUID, patch OrderPatch) (o Order, err error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	ctx, span := otel.Tracer("order").Start(ctx, "order.UpdateOrder")
	defer span.End()
	defer func() { recordMutation("update_order", err) }()

	if patch.Items != nil {
		if err := validateItems(*patch.Items); err != nil {
			return Order{}, err
		}
		for i := range *patch.Items {
			if err := common.Validate((*patch.Items)[i]); err != nil {
				return Order{}, err
			}
		}
	}
	if err := common.Validate(patch); err != nil {
		return Order{}, err
	}
	if err := common.AtMostCents(map[string]*decimal.Decimal{"vatRate": patch.VATRate}); err != nil {
		return Order{}, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return Order{}, common.Validation("invalid input", map[string]string{"status": "unknown status"})
	}

	err = s.Store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkVersion(current, patch.ExpectedVersion); err != nil {
			return err
		}
		if patch.touchesFinancials() {
			paid, err := tx.HasPayment(ctx, orderID)
			if err != nil {
				return err
			}
			if paid {
				return common.Conflict(errLocked)
			}
		}
		if patch.Status != nil && *patch.Status != current.Status {
			if !CanTransition(current.Status, *patch.Status) {
				return common.Conflict("cannot move order from " + string(current.Status) + " to " + string(*patch.Status))
			}
			current.Status = *patch.Status
		}
		if patch.Notes != nil {
			current.Notes = trimmed(patch.Notes)
		}
		if patch.OrderType != nil {
			current.OrderType = *patch.OrderType
		}
		if patch.VATRate != nil {
			current.VATRate = *patch.VATRate
		}
		if patch.ServiceCharge != nil {
			current.ServiceCharge = patch.ServiceCharge.Round(2)
		}
		if patch.Discount != nil {
			current.Discount = patch.Discount.Round(2)
		}
		if patch.Items != nil {
			items, err := resolveItems(ctx, tx, orderID, *patch.Items)
			if err != nil {
				return err
			}
			if err := tx.DeleteItems(ctx, orderID); err != nil {
				return err
			}
			if err := tx.InsertItems(ctx, items); err != nil {
				return err
			}
			current.Items = items
		}
		o, err = s.save(ctx, tx, current)
		return err
	})
	if err != nil {
		return Order{}, common.FromStore("update order", "order", err)
	}
	s.emit(ctx, events.TopicOrderUpdated, o)
	return o, nil
}

// DeleteOrder removes an unpaid order together with its items.
func (s *Service) DeleteOrder(ctx context.Context, orderID uuid.UUID, expectedVersion *int64) (err error) {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, span := otel.Tracer("order").Start(ctx, "order.DeleteOrder")
	defer span.End()
	defer func() { recordMutation("delete_order", err) }()

	var deleted Order
	err = s.Store.InTx(ctx, func(tx Tx) error {
		current, err := s.lockUnpaid(ctx, tx, orderID, expectedVersion)
		if err != nil {
			return err
		}
		deleted = current
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return common.FromStore("delete order", "order", err)
	}
	s.emit(ctx, events.TopicOrderDeleted, deleted)
	return nil
}

func (s *Service) lockUnpaid(ctx context.Context, tx Tx, orderID uuid.UUID, expected *int64) (Order, error) {
	current, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := checkVersion(current, expected); err != nil {
		return Order{}, err
	}
	paid, err := tx.HasPayment(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if paid {
		return Order{}, common.Conflict(errLocked)
	}
	return current, nil
}

func (s *Service) save(ctx context.Context, tx Tx, o Order) (Order, error) {
	o = Recompute(o)
	o.Version++
	o.UpdatedAt = s.now()
	if err := tx.SaveOrder(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Service) emit(ctx context.Context, topic string, o Order) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"orderId":   o.ID.String(),
		"status":    o.Status,
		"total":     o.Total.StringFixed(2),
		"vatAmount": o.VATAmount.StringFixed(2),
		"createdAt": o.CreatedAt,
		"version":   o.Version,
	}
	if _, err := s.Events.Emit(ctx, topic, o.ID, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID.String()).Str("topic", topic).Msg("emit order event")
	}
}

func checkVersion(o Order, expected *int64) error {
	if expected != nil && *expected != o.Version {
		return common.Conflict("order was modified; reload and retry")
	}
	return nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return common.Validation("invalid input", map[string]string{"items": "at least one item is required"})
	}
	details := map[string]string{}
	for i, it := range items {
		if it.MenuItemID == uuid.Nil {
			details[itemField(i, "menuItemId")] = "is required"
		}
		if it.Quantity <= 0 {
			details[itemField(i, "quantity")] = "must be greater than 0"
		}
	}
	if len(details) > 0 {
		return common.Validation("invalid input", details)
	}
	return nil
}

// resolveItems snapshots current menu prices. Every referenced menu item must
// exist and be available.
func resolveItems(ctx context.Context, tx Tx, orderID uuid.UUID, in []ItemInput) ([]Item, error) {
	ids := make([]uuid.UUID, 0, len(in))
	for _, it := range in {
		ids = append(ids, it.MenuItemID)
	}
	found, err := tx.MenuItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	details := map[string]string{}
	items := make([]Item, 0, len(in))
	for i, req := range in {
		mi, ok := found[req.MenuItemID]
		switch {
		case !ok:
			details[itemField(i, "menuItemId")] = "unknown menu item"
			continue
		case !mi.Available:
			details[itemField(i, "menuItemId")] = "menu item is unavailable"
			continue
		}
		items = append(items, Item{
			ID:           uuid.New(),
			OrderID:      orderID,
			MenuItemID:   mi.ID,
			Quantity:     req.Quantity,
			Price:        mi.Price,
			Instructions: trimmed(req.Instructions),
		})
	}
	if len(details) > 0 {
		return nil, common.Validation("invalid input", details)
	}
	return items, nil
}

func indexOfItem(items []Item, id uuid.UUID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func recordMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if appErr, ok := common.AsAppError(err); ok {
			result = strings.ToLower(appErr.Code)
		}
	}
	obs.IncCounter(obs.OrderMutationsTotal, op, result)
}
