package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) Purge(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestPurgeHandler(t *testing.T) {
	store := &fakePurger{}
	h := NewPurgeHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/purge-payments", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.calls)
}

func TestPurgeHandlerStoreError(t *testing.T) {
	h := NewPurgeHandler(&fakePurger{err: assert.AnError})

	req := httptest.NewRequest(http.MethodPost, "/purge-payments", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
