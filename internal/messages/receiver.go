package messages

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/semaphore"

	"payrelay/internal/payments"
)

const (
	maxReceiverConns = 512
	readBufferSize   = 8192
)

// MessageSink consumes messages parsed off the socket; *workers.WorkerPool
// satisfies it.
type MessageSink interface {
	Submit(msg *payments.PaymentMessage) error
}

// Receiver accepts connections on the worker's unix socket and feeds
// newline-framed JSON payment messages into the sink. Malformed frames are
// dropped without a trace; a full sink is logged and dropped.
type Receiver struct {
	socketPath string
	ln         net.Listener
	sink       MessageSink
	logger     *slog.Logger
	connSem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReceiver(socketPath string, sink MessageSink, logger *slog.Logger) *Receiver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Receiver{
		socketPath: socketPath,
		sink:       sink,
		logger:     logger,
		connSem:    semaphore.NewWeighted(maxReceiverConns),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start binds the socket (permissions 0600) and blocks in the accept loop.
func (r *Receiver) Start() error {
	_ = os.Remove(r.socketPath)

	ln, err := net.Listen("unix", r.socketPath)
	if err != nil {
		return err
	}
	r.ln = ln

	if err := os.Chmod(r.socketPath, 0o600); err != nil {
		r.logger.Warn("failed to set permissions on socket", "socket", r.socketPath, "error", err)
	}

	r.acceptLoop()
	return nil
}

func (r *Receiver) Stop() {
	r.cancel()
	if r.ln != nil {
		_ = r.ln.Close()
	}
	r.wg.Wait()
}

func (r *Receiver) acceptLoop() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			select {
			case <-r.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Error("failed to accept connection", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := r.connSem.Acquire(r.ctx, 1); err != nil {
			_ = conn.Close()
			return
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.connSem.Release(1)
			r.readProducer(conn)
		}()
	}
}

func (r *Receiver) readProducer(conn net.Conn) {
	defer conn.Close()

	// readBufferSize is the initial capacity, not a cap: a frame longer than
	// the buffer grows the read instead of killing the connection.
	rd := bufio.NewReaderSize(conn, readBufferSize)

	for {
		line, err := rd.ReadBytes('\n')
		line = bytes.TrimSuffix(line, []byte{'\n'})

		if len(line) > 0 {
			msg := new(payments.PaymentMessage)
			if uerr := sonic.ConfigFastest.Unmarshal(line, msg); uerr == nil {
				select {
				case <-r.ctx.Done():
					return
				default:
				}

				if serr := r.sink.Submit(msg); serr != nil {
					r.logger.Warn("failed to submit message to worker pool", "error", serr)
				}
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.logger.Warn("connection read failed", "error", err)
			}
			return
		}
	}
}
