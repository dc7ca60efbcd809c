package messages

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	dialTimeout       = 50 * time.Millisecond
	warmupDialTimeout = 100 * time.Millisecond
	warmupConns       = 5
)

// Publisher writes newline-terminated frames to the worker's receive socket
// through a small pool of persistent connections. The pool is the buffered
// channel itself: occupancy is its length, so it can never exceed maxConns.
type Publisher struct {
	socketPath string
	maxConns   int
	conns      chan net.Conn
	dialer     *net.Dialer
	logger     *slog.Logger
}

// NewPublisher pre-populates the pool with up to five connections,
// best-effort; a cold pool just means Publish dials on demand.
func NewPublisher(socketPath string, maxConns int, logger *slog.Logger) *Publisher {
	p := &Publisher{
		socketPath: socketPath,
		maxConns:   maxConns,
		conns:      make(chan net.Conn, maxConns),
		dialer:     &net.Dialer{Timeout: dialTimeout},
		logger:     logger,
	}

	warmupDialer := &net.Dialer{Timeout: warmupDialTimeout}
	warmup := min(maxConns, warmupConns)
	for range warmup {
		c, err := warmupDialer.Dial("unix", socketPath)
		if err != nil {
			p.logger.Warn("publisher warmup dial failed", "socket", socketPath, "error", err)
			break
		}
		p.conns <- c
	}

	return p
}

var bwPool = sync.Pool{
	New: func() any { return bufio.NewWriterSize(nil, 512) },
}

// Publish writes msg followed by a newline over a pooled connection. A write
// error shuts the connection down, triggers one asynchronous replacement
// dial and surfaces to the caller.
func (p *Publisher) Publish(msg []byte) error {
	conn, err := p.acquire()
	if err != nil {
		return err
	}

	bw := bwPool.Get().(*bufio.Writer)
	bw.Reset(conn)

	if _, err = bw.Write(msg); err == nil {
		err = bw.WriteByte('\n')
	}
	if err == nil {
		err = bw.Flush()
	}

	bwPool.Put(bw)

	if err != nil {
		_ = conn.Close()
		go p.replace()
		return err
	}

	p.release(conn)
	return nil
}

func (p *Publisher) acquire() (net.Conn, error) {
	select {
	case c := <-p.conns:
		return c, nil
	default:
		return p.dialer.Dial("unix", p.socketPath)
	}
}

func (p *Publisher) release(conn net.Conn) {
	select {
	case p.conns <- conn:
	default:
		_ = conn.Close()
	}
}

func (p *Publisher) replace() {
	c, err := p.dialer.Dial("unix", p.socketPath)
	if err != nil {
		return
	}
	p.release(c)
}
