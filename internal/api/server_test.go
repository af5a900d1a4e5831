package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/provmail/internal/events"
	"github.io/infrasutra/provmail/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store, *events.Hub) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.EnsureSchema(ctx))

	hub := events.NewHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(st, hub, logger), st, hub
}

func TestHealthAndReady(t *testing.T) {
	server, _, _ := testServer(t)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestStatsReportsCounters(t *testing.T) {
	server, st, _ := testServer(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceSession(ctx, store.Session{
		UserID: 1, Address: "a@example.test", Password: "pw", Token: "tok", CreatedAt: time.Now(),
	}))
	_, err := st.MarkSeen(ctx, 1, "m1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Sessions)
	assert.Equal(t, int64(1), stats.SeenMail)
}

func TestStatsRejectsNonGet(t *testing.T) {
	server, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStreamDeliversEvents(t *testing.T) {
	server, _, hub := testServer(t)

	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var sb strings.Builder
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			sb.WriteString(line)
			if line == "\n" {
				return sb.String()
			}
		}
	}

	assert.Contains(t, readEvent(), "event: ready")

	// The subscriber is registered before the ready frame is written.
	hub.Publish(events.Event{ID: "evt1", UserID: 7, MailID: "m1", Subject: "hi"})

	frame := readEvent()
	assert.Contains(t, frame, "event: mail")
	assert.Contains(t, frame, `"evt1"`)
	assert.Contains(t, frame, `"m1"`)
}
