package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"payrelay/internal/payments"
)

// Total inbound capacity, split evenly across the per-worker queues.
const bufferSize = 32768

var (
	ErrQueueFull   = errors.New("worker queue is full")
	ErrQueueClosed = errors.New("worker queues are closed")
)

// WorkerPool runs N workers, each draining its own bounded queue. Submit
// spreads messages across queues round-robin and never blocks; a full queue
// is the caller's signal to drop. Failed attempts go to the retry scheduler.
type WorkerPool struct {
	queues     []chan *payments.PaymentMessage
	next       atomic.Uint64
	numWorkers int
	done       chan struct{}

	defaultProcessor  *payments.PaymentProcessor
	fallbackProcessor *payments.PaymentProcessor
	store             *payments.PaymentStore
	healthMonitor     *ProcessorHealthMonitor
	scheduler         *RetryScheduler
	logger            *slog.Logger

	wg sync.WaitGroup
}

func NewWorkerPool(
	numWorkers int,
	def, fallback *payments.PaymentProcessor,
	store *payments.PaymentStore,
	healthMonitor *ProcessorHealthMonitor,
	logger *slog.Logger,
) *WorkerPool {
	p := &WorkerPool{
		queues:            make([]chan *payments.PaymentMessage, numWorkers),
		numWorkers:        numWorkers,
		done:              make(chan struct{}),
		defaultProcessor:  def,
		fallbackProcessor: fallback,
		store:             store,
		healthMonitor:     healthMonitor,
		logger:            logger,
	}

	queueCapacity := bufferSize / numWorkers
	for i := range p.queues {
		p.queues[i] = make(chan *payments.PaymentMessage, queueCapacity)
	}

	p.scheduler = NewRetryScheduler(p.Submit, logger)
	return p
}

func (p *WorkerPool) Start() {
	for i := range p.queues {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	p.scheduler.Start()
	p.logger.Info("started workers", "count", p.numWorkers)
}

// Stop halts the scheduler first so no resubmission races the teardown, then
// signals the workers. The queues are never closed: Submit stays safe to call
// at any point and reports ErrQueueClosed after shutdown. Messages still
// queued when Stop is called are dropped.
func (p *WorkerPool) Stop() {
	p.scheduler.Stop()
	close(p.done)
	p.wg.Wait()
}

// Submit try-sends to the next queue in round-robin order.
func (p *WorkerPool) Submit(msg *payments.PaymentMessage) error {
	select {
	case <-p.done:
		return ErrQueueClosed
	default:
	}

	idx := (p.next.Add(1) - 1) % uint64(len(p.queues))
	select {
	case p.queues[idx] <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *WorkerPool) runWorker(id int) {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		select {
		case msg, ok := <-p.queues[id]:
			if !ok {
				return
			}
			if err := p.process(ctx, msg); err != nil {
				p.logger.Debug("processing failed, scheduling retry", "workerId", id, "error", err)
				p.scheduler.Retry(msg)
			}
		case <-p.done:
			return
		}
	}
}

// process picks a processor by health, stamps the payment with the current
// time and dispatches it. The payment reaches the store exactly once, on
// success. 422 rejections still land in the retry path; the scheduler's
// attempt cap bounds them.
func (p *WorkerPool) process(ctx context.Context, msg *payments.PaymentMessage) error {
	processorType, err := p.healthMonitor.NextProcessor()
	if err != nil {
		return err
	}

	processor := p.defaultProcessor
	if processorType == payments.ProcessorTypeFallback {
		processor = p.fallbackProcessor
	}

	payment := payments.NewPayment(msg.Amount, msg.CorrelationId, processorType, time.Now().UTC())

	if err := processor.Process(ctx, payment); err != nil {
		if errors.Is(err, payments.ErrInvalidPayment) {
			p.logger.Warn("processor rejected payment", "processor", processorType, "correlationId", msg.CorrelationId)
		}
		return err
	}

	p.store.Add(payment)
	return nil
}
