package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	storeBufferSize = 16384
	drainInterval   = time.Millisecond
)

// DB is the slice of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PaymentStore buffers successful payments and writes them out in the
// background: a lone payment goes through a plain INSERT, anything more
// through a binary COPY. Run drives the write loop; producers use Add and
// never block.
type PaymentStore struct {
	db     DB
	buffer chan Payment
	done   chan struct{}
	logger *slog.Logger
}

func NewPaymentStore(db DB, logger *slog.Logger) *PaymentStore {
	return &PaymentStore{
		db:     db,
		buffer: make(chan Payment, storeBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Add enqueues without blocking. Overflow is dropped with an error log; the
// DB falling behind must not stall the workers.
func (ps *PaymentStore) Add(p Payment) bool {
	select {
	case ps.buffer <- p:
		return true
	default:
		ps.logger.Error("payment buffer is full, dropping payment", "correlationId", p.CorrelationId)
		return false
	}
}

// Close stops Run after a final drain and flush.
func (ps *PaymentStore) Close() { close(ps.done) }

func (ps *PaymentStore) Run() {
	ctx := context.Background()
	batch := make([]Payment, 0, 256)

	drain := func() {
		for {
			select {
			case p := <-ps.buffer:
				batch = append(batch, p)
			default:
				return
			}
		}
	}

	for {
		drain()

		select {
		case <-ps.done:
			drain()
			if len(batch) > 0 {
				ps.copyBatch(ctx, batch)
			}
			return
		default:
		}

		if len(batch) == 1 {
			ps.insertOne(ctx, batch[0])
		} else if len(batch) > 1 {
			ps.copyBatch(ctx, batch)
		}
		batch = batch[:0]

		time.Sleep(drainInterval)
	}
}

func (ps *PaymentStore) insertOne(ctx context.Context, p Payment) {
	_, err := ps.db.Exec(
		ctx,
		"INSERT INTO payments (amount, requested_at, service_used, correlation_id) VALUES ($1, $2, $3, $4)",
		p.Amount,
		p.RequestedAt,
		p.Processor,
		p.CorrelationId,
	)
	if err != nil {
		ps.logger.Error("failed to insert payment into database", "error", err)
	}
}

func (ps *PaymentStore) copyBatch(ctx context.Context, batch []Payment) {
	_, err := ps.db.CopyFrom(
		ctx,
		pgx.Identifier{"payments"},
		[]string{"amount", "requested_at", "service_used", "correlation_id"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			return []any{batch[i].Amount, batch[i].RequestedAt, batch[i].Processor, batch[i].CorrelationId}, nil
		}),
	)
	if err != nil {
		ps.logger.Error("failed to copy payments batch into database", "error", err, "batchSize", len(batch))
	}
}

const summaryQuery = `
	SELECT COUNT(*) AS total_requests,
	      SUM(amount) AS total_amount,
	      service_used
	FROM payments
	WHERE ($1::timestamp IS NULL OR requested_at >= $1::timestamp)
	 AND ($2::timestamp IS NULL OR requested_at <= $2::timestamp)
	GROUP BY service_used;
	`

// Summary groups persisted payments by processor, zero-filling missing
// groups. Nil bounds mean unbounded.
func (ps *PaymentStore) Summary(ctx context.Context, from, to *time.Time) (*Summary, error) {
	rows, err := ps.db.Query(ctx, summaryQuery, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &Summary{}

	for rows.Next() {
		var totalRequests int64
		var totalAmount decimal.Decimal
		var processor string

		if err := rows.Scan(&totalRequests, &totalAmount, &processor); err != nil {
			return nil, err
		}

		if processor == string(ProcessorTypeDefault) {
			summary.Default = ProcessorSummary{TotalRequests: totalRequests, TotalAmount: totalAmount}
		} else {
			summary.Fallback = ProcessorSummary{TotalRequests: totalRequests, TotalAmount: totalAmount}
		}
	}

	return summary, rows.Err()
}

func (ps *PaymentStore) Purge(ctx context.Context) error {
	_, err := ps.db.Exec(ctx, "TRUNCATE TABLE payments")
	return err
}
