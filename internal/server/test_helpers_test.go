package server

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/session"
	"github.com/battlelinehq/battleline/internal/store"
	"github.com/battlelinehq/battleline/internal/view"
)

type testEnv struct {
	server   *Server
	registry *session.Registry
	store    *store.Memory
	http     *httptest.Server
	client   *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.New(io.Discard)
	renderer, err := view.New()
	require.NoError(t, err)

	mem := store.NewMemory()
	rng := rand.New(rand.NewSource(42))
	var mu sync.Mutex
	registry, err := session.NewRegistry(session.Config{
		Store:    mem,
		Document: renderer.Document,
		NewState: func() *game.State {
			mu.Lock()
			defer mu.Unlock()
			return game.New(rng)
		},
		Logger: logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	orch := NewOrchestrator(OrchestratorConfig{
		Registry:  registry,
		BaseCtx:   ctx,
		QueueSize: 256,
		Logger:    logger,
	})

	cfg := DefaultConfig()
	srv := NewServer(ctx, cfg, registry, orch, renderer, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:   srv,
		registry: registry,
		store:    mem,
		http:     ts,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.http.URL + path)
	require.NoError(t, err)
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
