package workers

import (
	"container/heap"
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"payrelay/internal/payments"
)

const (
	retryCapacity  = bufferSize
	maxRetries     = 50
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 2 * time.Second
	jitterFraction = 0.2
)

type retryItem struct {
	msg         *payments.PaymentMessage
	nextAttempt time.Time
}

type retryHeap []*retryItem

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].nextAttempt.Before(h[j].nextAttempt) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)        { *h = append(*h, x.(*retryItem)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// RetryScheduler holds delayed attempts in a min-heap keyed by next-attempt
// time and resubmits them through the pool's regular submission path.
type RetryScheduler struct {
	items  chan *retryItem
	submit func(*payments.PaymentMessage) error
	logger *slog.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewRetryScheduler(submit func(*payments.PaymentMessage) error, logger *slog.Logger) *RetryScheduler {
	return &RetryScheduler{
		items:  make(chan *retryItem, retryCapacity),
		submit: submit,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (s *RetryScheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop returns only after the run loop has exited, so no resubmission is in
// flight once it does.
func (s *RetryScheduler) Stop() {
	close(s.done)
	s.wg.Wait()
}

// Retry schedules another attempt, or drops the message once it has used up
// its 50 attempts. Enqueueing never blocks.
func (s *RetryScheduler) Retry(msg *payments.PaymentMessage) {
	if msg.RetryCount >= maxRetries {
		s.logger.Warn("max retries exceeded, dropping message", "correlationId", msg.CorrelationId)
		return
	}

	msg.RetryCount++

	item := &retryItem{
		msg:         msg,
		nextAttempt: time.Now().Add(retryDelay(msg.CorrelationId, msg.RetryCount)),
	}

	select {
	case s.items <- item:
	default:
		s.logger.Warn("retry queue is full, dropping message", "correlationId", msg.CorrelationId)
	}
}

func (s *RetryScheduler) run() {
	defer s.wg.Done()

	h := &retryHeap{}
	heap.Init(h)

	var timer *time.Timer
	resetTimer := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
	}

	for {
		now := time.Now()
		for h.Len() > 0 && !(*h)[0].nextAttempt.After(now) {
			item := heap.Pop(h).(*retryItem)
			if err := s.submit(item.msg); err != nil {
				// The pool already applied its drop policy; do not reinsert.
				s.logger.Error("failed to resubmit retry message", "correlationId", item.msg.CorrelationId, "error", err)
			}
		}

		var deadline <-chan time.Time
		if h.Len() > 0 {
			wait := time.Until((*h)[0].nextAttempt)
			if wait < 0 {
				wait = 0
			}
			resetTimer(wait)
			deadline = timer.C
		}

		select {
		case item := <-s.items:
			heap.Push(h, item)
		case <-deadline:
		case <-s.done:
			return
		}
	}
}

// retryDelay is exponential backoff capped at maxBackoff, with symmetric
// ±20% jitter derived from a hash of the correlation id and retry count, so
// the scheduler carries no RNG state and a given attempt's delay is stable.
func retryDelay(correlationId uuid.UUID, retryCount uint32) time.Duration {
	shift := retryCount
	if shift > 10 {
		shift = 10
	}
	delay := baseBackoff << shift
	if delay > maxBackoff {
		delay = maxBackoff
	}

	hasher := fnv.New64a()
	_, _ = hasher.Write(correlationId[:])
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], retryCount)
	_, _ = hasher.Write(count[:])

	// Map the hash onto [-1, 1] and scale by the jitter fraction.
	unit := float64(hasher.Sum64()%2001)/1000.0 - 1.0
	jitter := time.Duration(unit * jitterFraction * float64(delay))

	return delay + jitter
}
