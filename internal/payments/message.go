package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMessage is the wire record read off the publish socket, one JSON
// object per newline-terminated frame. RetryCount is absent on fresh
// submissions and only ever incremented by the retry scheduler.
type PaymentMessage struct {
	Amount        decimal.Decimal `json:"amount"`
	CorrelationId uuid.UUID       `json:"correlationId"`
	RetryCount    uint32          `json:"retry_count,omitempty"`
}
