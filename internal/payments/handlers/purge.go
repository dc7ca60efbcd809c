package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type purger interface {
	Purge(ctx context.Context) error
}

type PurgeHandler struct {
	store purger
}

func NewPurgeHandler(store purger) *PurgeHandler {
	return &PurgeHandler{store: store}
}

func (h *PurgeHandler) Handle(c echo.Context) error {
	if err := h.store.Purge(c.Request().Context()); err != nil {
		c.Logger().Errorf("error purging payments: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusOK)
}
