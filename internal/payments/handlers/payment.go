package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

type publisher interface {
	Publish(msg []byte) error
}

// PaymentHandler accepts a payment submission and publishes the raw body to
// the workers. Validation happens on the receiving side; a frame that does
// not parse is dropped there.
type PaymentHandler struct {
	publisher publisher
}

func NewPaymentHandler(p publisher) *PaymentHandler {
	return &PaymentHandler{publisher: p}
}

func (h *PaymentHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusTooManyRequests)
	}

	if err := h.publisher.Publish(body); err != nil {
		// Client is expected to retry.
		return c.NoContent(http.StatusTooManyRequests)
	}

	return c.NoContent(http.StatusAccepted)
}
