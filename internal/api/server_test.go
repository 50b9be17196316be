package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/internal/library"
	"mediamirror/internal/logger"
	"mediamirror/internal/retrieval"
	"mediamirror/pkg/models"
)

// MockRunner reserves sources like the orchestrator and runs RunFunc in
// the background
type MockRunner struct {
	mu      sync.Mutex
	status  retrieval.Status
	busy    map[string]bool
	runs    []string
	RunFunc func(ctx context.Context, sourceID string) (retrieval.Result, error)
}

func (m *MockRunner) Start(ctx context.Context, sourceID string, done func(retrieval.Result, error)) error {
	m.mu.Lock()
	if m.busy[sourceID] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", retrieval.ErrSourceRunning, sourceID)
	}
	if m.busy == nil {
		m.busy = make(map[string]bool)
	}
	m.busy[sourceID] = true
	m.runs = append(m.runs, sourceID)
	m.mu.Unlock()

	go func() {
		result := retrieval.Result{SourceID: sourceID, State: retrieval.StateExhaustedEmpty}
		var err error
		if m.RunFunc != nil {
			result, err = m.RunFunc(ctx, sourceID)
		}
		m.mu.Lock()
		delete(m.busy, sourceID)
		m.mu.Unlock()
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}

func (m *MockRunner) Status() retrieval.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MockRunner) Runs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.runs...)
}

func newTestServer(t *testing.T, runner Runner) (*Server, retrieval.Layout) {
	t.Helper()
	layout := retrieval.Layout{Root: t.TempDir(), UseFolderSuffix: true, SeparatePreviews: true}
	cfg := models.DefaultConfig()
	cfg.Server.Port = 0 // Use random available port
	if runner == nil {
		runner = &MockRunner{}
	}
	return NewServer(cfg, runner, library.NewManager(layout), "test", logger.Discard()), layout
}

func TestNewServer(t *testing.T) {
	server, layout := newTestServer(t, nil)
	require.NotNil(t, server)
	assert.Equal(t, layout.Root, server.library.Root())
	assert.False(t, server.IsRunning())
}

func TestServerStart(t *testing.T) {
	server, _ := newTestServer(t, nil)

	err := server.Start()
	require.NoError(t, err)
	assert.True(t, server.IsRunning())

	resp, err := http.Get("http://" + server.GetActualAddr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	err = server.Stop()
	require.NoError(t, err)
	assert.False(t, server.IsRunning())
}

func TestServerStartAlreadyRunning(t *testing.T) {
	server, _ := newTestServer(t, nil)

	err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	err = server.Start()
	assert.ErrorIs(t, err, ErrServerAlreadyRunning)
}

func TestServerStopNotRunning(t *testing.T) {
	server, _ := newTestServer(t, nil)

	err := server.Stop()
	assert.ErrorIs(t, err, ErrServerNotRunning)
}

func TestStaticFileServing(t *testing.T) {
	server, layout := newTestServer(t, nil)

	dir := filepath.Join(layout.Root, "alice_mirror", "Pictures")
	require.NoError(t, os.MkdirAll(dir, 0755))
	testContent := []byte("picture bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), testContent, 0644))

	req := httptest.NewRequest("GET", "/alice_mirror/Pictures/a.jpg", nil)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testContent, w.Body.Bytes())
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGetAddr(t *testing.T) {
	server, _ := newTestServer(t, nil)
	server.config.Server.Port = 8080

	assert.Equal(t, "127.0.0.1:8080", server.GetAddr())
	assert.Equal(t, "127.0.0.1:8080", server.GetActualAddr())
}

func TestServerGracefulShutdown(t *testing.T) {
	server, _ := newTestServer(t, nil)

	err := server.Start()
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		assert.NoError(t, server.Stop())
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServerRestart(t *testing.T) {
	server, _ := newTestServer(t, nil)

	require.NoError(t, server.Start())
	require.NoError(t, server.Stop())
	require.NoError(t, server.Start())
	defer server.Stop()

	assert.NoError(t, server.ctx.Err())
}
