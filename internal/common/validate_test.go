package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
)

type sample struct {
	Name   string           `json:"name" validate:"required"`
	Qty    int              `json:"quantity" validate:"gt=0"`
	Amount decimal.Decimal  `json:"amount" validate:"gte=0"`
	Rate   *decimal.Decimal `json:"rate,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func TestValidateReportsFields(t *testing.T) {
	rate := decimal.NewFromInt(150)
	err := common.Validate(sample{Qty: 0, Amount: decimal.NewFromInt(-1), Rate: &rate})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, common.CodeValidation, appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Contains(t, details, "name")
	require.Contains(t, details, "quantity")
	require.Contains(t, details, "amount")
	require.Contains(t, details, "rate")
}

func TestValidateAcceptsValid(t *testing.T) {
	require.NoError(t, common.Validate(sample{Name: "x", Qty: 1, Amount: decimal.NewFromInt(3)}))
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	err := common.Internal("save order", errSecret)

	rr := httptest.NewRecorder()
	common.WriteError(rr, httptest.NewRequest(http.MethodGet, "/", nil), err)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "secret")

	debug := common.DebugErrors(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.WriteError(w, r, err)
	}))
	rr = httptest.NewRecorder()
	debug.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Contains(t, rr.Body.String(), "secret")
}

func TestWriteErrorConflict(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, httptest.NewRequest(http.MethodGet, "/", nil), common.Conflict("order is locked"))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.JSONEq(t, `{"error":{"code":"CONFLICT","message":"order is locked"}}`, rr.Body.String())
}

type secretErr struct{}

func (secretErr) Error() string { return "secret dsn" }

var errSecret = secretErr{}

func TestPageFrom(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/orders?page=3&limit=500", nil)
	p := common.PageFrom(r, 20, 100)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 100, p.PerPage)
	require.Equal(t, 200, p.Offset())
	require.Equal(t, 7, p.WithTotal(7).TotalItems)

	p = common.PageFrom(httptest.NewRequest(http.MethodGet, "/orders?page=-1", nil), 20, 100)
	require.Equal(t, common.Pagination{Page: 1, PerPage: 20}, p)
}
