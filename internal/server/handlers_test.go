package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkettner/relaychat/internal/server"
)

type fixture struct {
	registry   *server.Registry
	dispatcher *server.Dispatcher
	hub        *server.Hub
	handlers   *server.Handlers
	srv        *httptest.Server
}

func newFixture(t *testing.T, origins ...string) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := server.NewConfig()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg.AllowedOrigins = origins

	registry := server.NewRegistry(logger)
	sessions := server.NewSessionTable()
	broadcaster := server.NewBroadcaster(registry, sessions, logger)
	dispatcher := server.NewDispatcher(registry, sessions, broadcaster, logger)
	hub := server.NewHub(dispatcher, logger)
	go hub.Run()

	handlers := server.NewHandlers(hub, registry, dispatcher, cfg, logger)
	srv := httptest.NewServer(handlers.Routes())

	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &fixture{
		registry:   registry,
		dispatcher: dispatcher,
		hub:        hub,
		handlers:   handlers,
		srv:        srv,
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/health")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("text/plain", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Equal("RelayChat server is running!", string(body))
}

func TestHealthEndpointRejectsPost(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Post(f.srv.URL+"/health", "text/plain", nil)
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusEndpointReportsRegistryState(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.registry.Join("conn-1", server.JoinRequest{UserName: "Alice", RoomID: "lobby"})
	req.NoError(err)
	_, err = f.registry.Join("conn-2", server.JoinRequest{UserName: "Bob", RoomID: "lobby"})
	req.NoError(err)
	_, err = f.registry.Join("conn-3", server.JoinRequest{UserName: "Cleo", RoomID: "den"})
	req.NoError(err)

	resp, err := http.Get(f.srv.URL + "/status")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("application/json", resp.Header.Get("Content-Type"))

	var status server.StatusResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&status))
	req.Equal(2, status.Rooms)
	req.Equal(3, status.TotalUsers)
	req.Len(status.RoomList, 2)
	req.False(status.Timestamp.IsZero())

	for _, info := range status.RoomList {
		switch info.ID {
		case "lobby":
			req.Equal(2, info.Members)
		case "den":
			req.Equal(1, info.Members)
		default:
			t.Fatalf("unexpected room %q", info.ID)
		}
		req.False(info.CreatedAt.IsZero())
	}
}

func TestTestPageServed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("text/html", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Contains(string(body), "join-room")
}

func TestWebSocketEndpointRejectsPlainHTTP(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/ws")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
