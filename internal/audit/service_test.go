package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/store/memory"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 4, 12, 0, 0, 0, time.FixedZone("CET", 3600)) }

func entries(t *testing.T, st *memory.Store) []audit.Entry {
	t.Helper()
	out, _, err := st.ListAuditEntries(context.Background(), 100, 0)
	require.NoError(t, err)
	return out
}

func TestServiceRecord(t *testing.T) {
	st := memory.New()
	svc := &audit.Service{Store: st, Enabled: true, SamplingRate: 1, Now: fixedNow}
	staffID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "https://resto.test/api/v1/orders/abc/payments?source=till", nil)
	req.Header.Set("User-Agent", "till/1.0")
	req.Header.Set("X-Request-Id", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithStaffID(req.Context(), staffID)
	ctx = obs.WithRoutePattern(ctx, "/api/v1/orders/{orderId}/payments")
	req = req.WithContext(ctx)

	err := svc.Record(req.Context(), audit.ActorFrom(req.Context()), "", "", "abc", req, http.StatusCreated, nil)
	require.NoError(t, err)

	got := entries(t, st)
	require.Len(t, got, 1)
	e := got[0]
	require.NotEqual(t, uuid.Nil, e.ID)
	require.Equal(t, audit.ActorUser, e.ActorKind)
	require.Equal(t, staffID, *e.ActorStaffID)
	require.Equal(t, "POST /api/v1/orders/{orderId}/payments", e.Action)
	require.Equal(t, "orders.payments", e.ResourceType)
	require.Equal(t, "abc", *e.ResourceID)
	require.Equal(t, "/api/v1/orders/abc/payments", e.Path)
	require.Equal(t, http.StatusCreated, e.Status)
	require.Equal(t, "10.0.0.2", *e.IP)
	require.Equal(t, "till/1.0", *e.UserAgent)
	require.Equal(t, "req-123", *e.RequestID)
	require.Equal(t, time.UTC, e.CreatedAt.Location())

	var meta map[string]string
	require.NoError(t, json.Unmarshal(e.Metadata, &meta))
	require.Equal(t, "source=till", meta["query"])
}

func TestServiceRecordWithoutStaffIsAnonymous(t *testing.T) {
	st := memory.New()
	svc := &audit.Service{Store: st, Enabled: true, Now: fixedNow}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings/accounting", nil)

	require.NoError(t, svc.Record(req.Context(), audit.ActorFrom(req.Context()), "settings.update", "accounting_settings", "", req, 0, []byte(`{"k":"v"}`)))

	e := entries(t, st)[0]
	require.Equal(t, audit.ActorAnonymous, e.ActorKind)
	require.Nil(t, e.ActorStaffID)
	require.Nil(t, e.ResourceID)
	require.Equal(t, "settings.update", e.Action)
	require.Equal(t, http.StatusOK, e.Status)
	require.JSONEq(t, `{"k":"v"}`, string(e.Metadata))
}

func TestServiceRecordUnknownKindFallsBackToAnonymous(t *testing.T) {
	st := memory.New()
	svc := &audit.Service{Store: st, Enabled: true, Now: fixedNow}
	req := httptest.NewRequest(http.MethodDelete, "/x", nil)

	require.NoError(t, svc.Record(req.Context(), audit.Actor{Kind: "robot"}, "", "", "", req, http.StatusNoContent, nil))
	e := entries(t, st)[0]
	require.Equal(t, audit.ActorAnonymous, e.ActorKind)
	require.Equal(t, "x", e.ResourceType)
}

func TestServiceRecordDisabledOrUnsampled(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for name, svc := range map[string]*audit.Service{
		"disabled": {Enabled: false},
		"nil":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			st := memory.New()
			if svc != nil {
				svc.Store = st
			}
			require.NoError(t, svc.Record(req.Context(), audit.Actor{}, "", "", "", req, http.StatusOK, nil))
			require.NoError(t, svc.RecordSystem(req.Context(), "noop", "", "", nil))
			require.Empty(t, entries(t, st))
		})
	}
}

func TestServiceRecordSystem(t *testing.T) {
	st := memory.New()
	svc := &audit.Service{Store: st, Enabled: true, Now: fixedNow}
	id := uuid.NewString()

	require.NoError(t, svc.RecordSystem(context.Background(), "vat_return.refresh", "vat_returns", id, []byte(`{"vatDue":"1.00"}`)))

	e := entries(t, st)[0]
	require.Equal(t, audit.ActorSystem, e.ActorKind)
	require.Equal(t, id, *e.ResourceID)
	require.Empty(t, e.Method)
	require.Nil(t, e.Route)
	require.Nil(t, e.IP)
}

type failingStore struct{ memory.Store }

func (*failingStore) InsertAuditEntry(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

func TestServiceRecordSurfacesStoreError(t *testing.T) {
	svc := &audit.Service{Store: &failingStore{}, Enabled: true}
	require.ErrorContains(t, svc.RecordSystem(context.Background(), "x", "y", "", nil), "disk full")

	var nilStore audit.Service
	nilStore.Enabled = true
	require.Error(t, nilStore.RecordSystem(context.Background(), "x", "y", "", nil))
}

func TestServiceListPaginatesNewestFirst(t *testing.T) {
	st := memory.New()
	clock := fixedNow()
	svc := &audit.Service{Store: st, Enabled: true, Now: func() time.Time { return clock }}
	for _, action := range []string{"a", "b", "c"} {
		require.NoError(t, svc.RecordSystem(context.Background(), action, "r", "", nil))
		clock = clock.Add(time.Second)
	}

	page, total, err := svc.List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 2)
	require.Equal(t, "b", page[0].Action)
	require.Equal(t, "a", page[1].Action)
}

func TestHandlerList(t *testing.T) {
	st := memory.New()
	svc := &audit.Service{Store: st, Enabled: true, Now: fixedNow}
	for range 3 {
		require.NoError(t, svc.RecordSystem(context.Background(), "vat_return.refresh", "vat_returns", "", nil))
	}
	r := chi.NewRouter()
	r.Get("/audit", (&audit.Handler{Svc: svc}).List)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data       []audit.Entry     `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, common.Pagination{Page: 2, PerPage: 2, TotalItems: 3}, body.Pagination)
}
