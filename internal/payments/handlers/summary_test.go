package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrelay/internal/payments"
)

type fakeSummarizer struct {
	from, to *time.Time
	summary  *payments.Summary
	err      error
}

func (f *fakeSummarizer) Summary(ctx context.Context, from, to *time.Time) (*payments.Summary, error) {
	f.from, f.to = from, to
	return f.summary, f.err
}

func TestSummaryHandlerReturnsJSON(t *testing.T) {
	store := &fakeSummarizer{summary: &payments.Summary{
		Default:  payments.ProcessorSummary{TotalRequests: 3, TotalAmount: decimal.RequireFromString("59.70")},
		Fallback: payments.ProcessorSummary{TotalRequests: 1, TotalAmount: decimal.RequireFromString("10.00")},
	}}
	h := NewSummaryHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/payments-summary", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Handle(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"default":  {"totalRequests": 3, "totalAmount": 59.70},
		"fallback": {"totalRequests": 1, "totalAmount": 10.00}
	}`, rec.Body.String())
	assert.Nil(t, store.from)
	assert.Nil(t, store.to)
}

func TestSummaryHandlerParsesTimeBounds(t *testing.T) {
	store := &fakeSummarizer{summary: &payments.Summary{}}
	h := NewSummaryHandler(store)

	req := httptest.NewRequest(http.MethodGet,
		"/payments-summary?from=2026-08-01T00:00:00Z&to=2026-08-02T12:30:00", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, store.from)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), store.from.UTC())

	// A bare local datetime without an offset is still accepted.
	require.NotNil(t, store.to)
	assert.Equal(t, time.Date(2026, 8, 2, 12, 30, 0, 0, time.UTC), store.to.UTC())
}

func TestSummaryHandlerIgnoresMalformedTimeBounds(t *testing.T) {
	store := &fakeSummarizer{summary: &payments.Summary{}}
	h := NewSummaryHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/payments-summary?from=yesterday", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, store.from)
}

func TestSummaryHandlerStoreError(t *testing.T) {
	h := NewSummaryHandler(&fakeSummarizer{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/payments-summary", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
