package workers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrelay/internal/payments"
)

func newSeededMonitor(t *testing.T) *ProcessorHealthMonitor {
	t.Helper()
	return NewHealthMonitor("http://default", "http://fallback", http.DefaultClient, testLogger())
}

func TestNextProcessorPrefersHealthyDefault(t *testing.T) {
	m := newSeededMonitor(t)

	processor, err := m.NextProcessor()
	require.NoError(t, err)
	assert.Equal(t, payments.ProcessorTypeDefault, processor)
}

func TestNextProcessorFallsBackWhenDefaultFailing(t *testing.T) {
	m := newSeededMonitor(t)
	m.setHealth(payments.ProcessorTypeDefault, ProcessorHealth{Failing: true})

	processor, err := m.NextProcessor()
	require.NoError(t, err)
	assert.Equal(t, payments.ProcessorTypeFallback, processor)
}

func TestNextProcessorTreatsSlowAsFailing(t *testing.T) {
	m := newSeededMonitor(t)
	m.setHealth(payments.ProcessorTypeDefault, ProcessorHealth{MinResponseTime: maxAcceptableMinResponseTime + 1})

	processor, err := m.NextProcessor()
	require.NoError(t, err)
	assert.Equal(t, payments.ProcessorTypeFallback, processor)

	m.setHealth(payments.ProcessorTypeFallback, ProcessorHealth{MinResponseTime: maxAcceptableMinResponseTime + 1})
	_, err = m.NextProcessor()
	assert.ErrorIs(t, err, ErrBothProcessorsFailing)
}

func TestNextProcessorBothFailing(t *testing.T) {
	m := newSeededMonitor(t)
	m.setHealth(payments.ProcessorTypeDefault, ProcessorHealth{Failing: true})
	m.setHealth(payments.ProcessorTypeFallback, ProcessorHealth{Failing: true})

	_, err := m.NextProcessor()
	assert.ErrorIs(t, err, ErrBothProcessorsFailing)
}

func TestProbeUpdatesHealth(t *testing.T) {
	var probedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"failing": true, "minResponseTime": 30}`))
	}))
	defer srv.Close()

	m := NewHealthMonitor(srv.URL, "http://fallback", srv.Client(), testLogger())
	m.probe(payments.ProcessorTypeDefault)

	assert.Equal(t, "/payments/service-health", probedPath)
	assert.Equal(t, ProcessorHealth{Failing: true, MinResponseTime: 30}, m.Health(payments.ProcessorTypeDefault))
	// The other processor's seeded state is untouched.
	assert.Equal(t, ProcessorHealth{}, m.Health(payments.ProcessorTypeFallback))
}

func TestProbeFailureKeepsLastKnownHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewHealthMonitor(srv.URL, "http://fallback", srv.Client(), testLogger())
	known := ProcessorHealth{Failing: true, MinResponseTime: 12}
	m.setHealth(payments.ProcessorTypeDefault, known)

	m.probe(payments.ProcessorTypeDefault)

	assert.Equal(t, known, m.Health(payments.ProcessorTypeDefault))
}

func TestProbeTransportFailureKeepsLastKnownHealth(t *testing.T) {
	m := NewHealthMonitor("http://127.0.0.1:1", "http://fallback", http.DefaultClient, testLogger())
	known := ProcessorHealth{MinResponseTime: 7}
	m.setHealth(payments.ProcessorTypeDefault, known)

	m.probe(payments.ProcessorTypeDefault)

	assert.Equal(t, known, m.Health(payments.ProcessorTypeDefault))
}
