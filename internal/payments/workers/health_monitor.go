package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"payrelay/internal/payments"
)

const (
	probeInterval = 5 * time.Second
	probeTimeout  = 100 * time.Millisecond

	// A processor reporting a min response time above this is treated as
	// failing even when its failing flag is off.
	maxAcceptableMinResponseTime = 50
)

var ErrBothProcessorsFailing = errors.New("both processors are failing")

type ProcessorHealth struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"minResponseTime"`
}

// ProcessorHealthMonitor polls both processors' service-health endpoints and
// keeps the last-known health of each. The map always holds exactly the two
// processors; probe failures leave the previous state in place.
type ProcessorHealthMonitor struct {
	logger     *slog.Logger
	httpClient *http.Client
	healthURLs map[payments.ProcessorType]string
	done       chan struct{}

	mu      sync.RWMutex
	healths map[payments.ProcessorType]ProcessorHealth
}

func NewHealthMonitor(defaultBaseURL, fallbackBaseURL string, httpClient *http.Client, logger *slog.Logger) *ProcessorHealthMonitor {
	return &ProcessorHealthMonitor{
		logger:     logger,
		httpClient: httpClient,
		healthURLs: map[payments.ProcessorType]string{
			payments.ProcessorTypeDefault:  defaultBaseURL + "/payments/service-health",
			payments.ProcessorTypeFallback: fallbackBaseURL + "/payments/service-health",
		},
		done: make(chan struct{}),
		healths: map[payments.ProcessorType]ProcessorHealth{
			payments.ProcessorTypeDefault:  {},
			payments.ProcessorTypeFallback: {},
		},
	}
}

func (m *ProcessorHealthMonitor) StartMonitoring() {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	m.probe(payments.ProcessorTypeDefault)
	m.probe(payments.ProcessorTypeFallback)

	for {
		select {
		case <-ticker.C:
			m.probe(payments.ProcessorTypeDefault)
			m.probe(payments.ProcessorTypeFallback)
		case <-m.done:
			return
		}
	}
}

func (m *ProcessorHealthMonitor) Stop() { close(m.done) }

func (m *ProcessorHealthMonitor) probe(processor payments.ProcessorType) {
	healthURL := m.healthURLs[processor]

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		m.logger.Error("failed to create health probe request", "url", healthURL, "error", err)
		return
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn("health probe failed", "url", healthURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.logger.Warn("health probe returned non-OK status", "url", healthURL, "status", resp.StatusCode)
		return
	}

	var health ProcessorHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		m.logger.Warn("failed to decode health probe response", "url", healthURL, "error", err)
		return
	}

	m.setHealth(processor, health)
}

func (m *ProcessorHealthMonitor) setHealth(processor payments.ProcessorType, health ProcessorHealth) {
	m.mu.Lock()
	m.healths[processor] = health
	m.mu.Unlock()
}

func (m *ProcessorHealthMonitor) Health(processor payments.ProcessorType) ProcessorHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healths[processor]
}

// NextProcessor prefers the default processor, falls back when only the
// fallback is healthy, and reports ErrBothProcessorsFailing otherwise.
func (m *ProcessorHealthMonitor) NextProcessor() (payments.ProcessorType, error) {
	m.mu.RLock()
	defaultHealth := m.healths[payments.ProcessorTypeDefault]
	fallbackHealth := m.healths[payments.ProcessorTypeFallback]
	m.mu.RUnlock()

	if !failing(defaultHealth) {
		return payments.ProcessorTypeDefault, nil
	}
	if !failing(fallbackHealth) {
		return payments.ProcessorTypeFallback, nil
	}
	return "", ErrBothProcessorsFailing
}

func failing(h ProcessorHealth) bool {
	return h.Failing || h.MinResponseTime > maxAcceptableMinResponseTime
}
