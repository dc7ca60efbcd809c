package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"payrelay/internal/payments"
)

// Timestamps arrive as RFC 3339 or as bare local datetimes without an
// offset.
const localDateTime = "2006-01-02T15:04:05"

type summarizer interface {
	Summary(ctx context.Context, from, to *time.Time) (*payments.Summary, error)
}

type SummaryHandler struct {
	store summarizer
}

func NewSummaryHandler(store summarizer) *SummaryHandler {
	return &SummaryHandler{store: store}
}

func (h *SummaryHandler) Handle(c echo.Context) error {
	from := parseTimeParam(c.QueryParam("from"))
	to := parseTimeParam(c.QueryParam("to"))

	summary, err := h.store.Summary(c.Request().Context(), from, to)
	if err != nil {
		c.Logger().Errorf("error while querying payments summary: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, summary)
}

func parseTimeParam(value string) *time.Time {
	if value == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed
	}
	if parsed, err := time.Parse(localDateTime, value); err == nil {
		return &parsed
	}
	return nil
}
