package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProcessorType string

const (
	ProcessorTypeDefault  ProcessorType = "default"
	ProcessorTypeFallback ProcessorType = "fallback"
)

var (
	ErrUnavailableProcessor = errors.New("unavailable processor")
	ErrInvalidPayment       = errors.New("invalid payment")
)

// PaymentProcessor is a thin POST client for one external processor.
type PaymentProcessor struct {
	paymentsURL   string
	processorType ProcessorType
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewPaymentProcessor(httpClient *http.Client, baseURL string, processorType ProcessorType, logger *slog.Logger) *PaymentProcessor {
	return &PaymentProcessor{
		httpClient:    httpClient,
		paymentsURL:   baseURL + "/payments",
		processorType: processorType,
		logger:        logger,
	}
}

func (s *PaymentProcessor) Type() ProcessorType { return s.processorType }

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	CorrelationId uuid.UUID       `json:"correlationId"`
	RequestedAt   time.Time       `json:"requestedAt"`
}

var bufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Process POSTs the payment and classifies the response: 422 is an invalid
// payment, 408/429/5xx and transport failures mean the processor is
// unavailable, everything else counts as accepted.
func (s *PaymentProcessor) Process(ctx context.Context, p Payment) error {
	body := paymentRequest{
		Amount:        p.Amount,
		CorrelationId: p.CorrelationId,
		RequestedAt:   p.RequestedAt,
	}

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := sonic.ConfigFastest.NewEncoder(buf).Encode(body); err != nil {
		return fmt.Errorf("failed to serialize request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.paymentsURL, buf)
	if err != nil {
		return fmt.Errorf("unable to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	if err != nil {
		s.logger.Debug("payment request failed", "processor", s.processorType, "error", err)
		return ErrUnavailableProcessor
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrInvalidPayment
	case resp.StatusCode >= 500 ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout:
		return ErrUnavailableProcessor
	}

	return nil
}
