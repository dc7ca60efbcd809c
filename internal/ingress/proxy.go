package ingress

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	idlePoolSize    = 2048
	idleConnTimeout = 2 * time.Second
	connBufferSize  = 16 * 1024
)

// Proxy forwards each request to one of the gateway backends, selected by an
// atomic counter modulo the backend count. Each backend gets its own client
// so connection pools never mix hosts. No retries: a transport failure is a
// 502 and the client's problem.
type Proxy struct {
	clients []*http.Client
	next    atomic.Uint64
	logger  *slog.Logger
}

func NewProxy(backendPaths []string, logger *slog.Logger) *Proxy {
	clients := make([]*http.Client, len(backendPaths))
	for i, path := range backendPaths {
		clients[i] = &http.Client{Transport: backendTransport(path)}
	}
	return &Proxy{clients: clients, logger: logger}
}

func backendTransport(socketPath string) *http.Transport {
	dialer := &net.Dialer{}
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:        idlePoolSize,
		MaxIdleConnsPerHost: idlePoolSize,
		IdleConnTimeout:     idleConnTimeout,
		ReadBufferSize:      connBufferSize,
		WriteBufferSize:     connBufferSize,
		DisableCompression:  true,
		ForceAttemptHTTP2:   false,
	}
}

// Hop-by-hop headers (RFC 9110 §7.6.1) stay between the client and the
// proxy; they never reach the backend.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	client := p.selectBackend()

	// Path and query pass through verbatim; the host is a placeholder, the
	// transport dials the unix socket.
	req, err := http.NewRequestWithContext(r.Context(), r.Method, "http://gateway"+r.URL.RequestURI(), r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.ContentLength = r.ContentLength

	resp, err := client.Do(req)
	if err != nil {
		p.logger.Debug("backend request failed", "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (p *Proxy) selectBackend() *http.Client {
	idx := (p.next.Add(1) - 1) % uint64(len(p.clients))
	return p.clients[idx]
}
