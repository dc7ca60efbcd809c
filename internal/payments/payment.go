package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts render as JSON numbers with full precision.
	decimal.MarshalJSONWithoutQuotes = true
}

// Payment is the persistence record for a payment that a processor accepted.
// Never mutated after construction.
type Payment struct {
	Amount        decimal.Decimal
	CorrelationId uuid.UUID
	RequestedAt   time.Time
	Processor     ProcessorType
}

func NewPayment(amount decimal.Decimal, correlationId uuid.UUID, processor ProcessorType, requestedAt time.Time) Payment {
	return Payment{
		Amount:        amount,
		CorrelationId: correlationId,
		Processor:     processor,
		RequestedAt:   requestedAt,
	}
}
