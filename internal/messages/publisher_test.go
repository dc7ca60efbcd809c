package messages

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lineServer accepts connections on a unix socket and pushes every
// newline-terminated frame it reads onto lines.
func lineServer(t *testing.T) (socketPath string, lines chan string) {
	t.Helper()

	socketPath = filepath.Join(t.TempDir(), "pub.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	lines = make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				sc := bufio.NewScanner(conn)
				for sc.Scan() {
					lines <- sc.Text()
				}
			}()
		}
	}()

	return socketPath, lines
}

func TestPublishWritesFrame(t *testing.T) {
	socketPath, lines := lineServer(t)

	p := NewPublisher(socketPath, 8, testLogger())
	require.NoError(t, p.Publish([]byte(`{"amount":10.0}`)))

	select {
	case line := <-lines:
		assert.Equal(t, `{"amount":10.0}`, line)
	case <-time.After(time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestPublishReusesConnection(t *testing.T) {
	socketPath, lines := lineServer(t)

	p := NewPublisher(socketPath, 1, testLogger())
	require.NoError(t, p.Publish([]byte("first")))
	require.NoError(t, p.Publish([]byte("second")))

	for _, want := range []string{"first", "second"} {
		select {
		case line := <-lines:
			assert.Equal(t, want, line)
		case <-time.After(time.Second):
			t.Fatalf("frame %q never arrived", want)
		}
	}
	assert.Len(t, p.conns, 1)
}

func TestPublishFailsWithoutListener(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "absent.sock")

	p := NewPublisher(socketPath, 4, testLogger())
	assert.Empty(t, p.conns)
	assert.Error(t, p.Publish([]byte("dropped")))
}

func TestWarmupPopulatesPool(t *testing.T) {
	socketPath, _ := lineServer(t)

	p := NewPublisher(socketPath, 8, testLogger())
	assert.Len(t, p.conns, warmupConns)

	small := NewPublisher(socketPath, 2, testLogger())
	assert.Len(t, small.conns, 2)
}

func TestReleaseClosesOverflowConnection(t *testing.T) {
	socketPath, _ := lineServer(t)

	p := NewPublisher(socketPath, 1, testLogger())
	require.Len(t, p.conns, 1)

	extra, err := net.Dial("unix", socketPath)
	require.NoError(t, err)

	p.release(extra)

	assert.Len(t, p.conns, 1)
	_, err = extra.Write([]byte("x"))
	assert.Error(t, err)
}
