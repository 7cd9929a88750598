// Package server exposes the HTTP surface of the relay: WebSocket upgrades,
// health checks, the administrative status view, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handlers bundles the HTTP handlers with the components they report on.
type Handlers struct {
	hub        *Hub
	registry   *Registry
	dispatcher *Dispatcher
	cfg        *Config
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

// NewHandlers creates the HTTP surface. The upgrader enforces the configured
// origin policy.
func NewHandlers(hub *Hub, registry *Registry, dispatcher *Dispatcher, cfg *Config, log *slog.Logger) *Handlers {
	policy := newOriginPolicy(cfg.AllowedOrigins, log)
	return &Handlers{
		hub:        hub,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// WebSocket upgrades the request, assigns the connection its identity, and
// registers the client with the hub, which launches the pump goroutines.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.hub, h.dispatcher, uuid.NewString(), r.RemoteAddr, h.cfg, h.log)
	h.hub.register <- client
}

// Health provides a simple health check endpoint returning plain text.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "RelayChat server is running!")
}

// StatusResponse is the administrative snapshot served by /status.
type StatusResponse struct {
	Connections int        `json:"connections"`
	Rooms       int        `json:"rooms"`
	TotalUsers  int        `json:"totalUsers"`
	RoomList    []RoomInfo `json:"roomList"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Status reports connection, room and user counts plus per-room details.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Connections: h.hub.ClientCount(),
		Rooms:       h.registry.RoomCount(),
		TotalUsers:  h.registry.TotalUserCount(),
		RoomList:    h.registry.RoomInfos(),
		Timestamp:   time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn("error writing status response", "error", err)
	}
}

// TestPage serves an HTML page for exercising the room protocol by hand:
// join a room, send messages, watch broadcasts arrive.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>RelayChat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        .system { color: gray; font-style: italic; }
        .chat { color: black; }
        .error { color: #a00; }
    </style>
</head>
<body>
    <h1>RelayChat Test</h1>
    <div>
        <input type="text" id="nameInput" placeholder="Display name">
        <input type="text" id="roomInput" placeholder="Room">
        <button onclick="join()">Join</button>
        <button onclick="leave()">Leave</button>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="send()">Send</button>
    </div>

    <script>
        let ws = null;
        const messages = document.getElementById('messages');

        function show(text, cls) {
            const el = document.createElement('div');
            el.className = cls;
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onmessage = function(ev) {
                const e = JSON.parse(ev.data);
                switch (e.event) {
                case 'room-joined':
                    show('Joined ' + e.data.roomId + ' as ' + e.data.userName +
                         ' (users: ' + e.data.users.join(', ') + ')', 'system');
                    break;
                case 'room-join-failed':
                case 'error':
                    show(e.data.message, 'error');
                    break;
                case 'user-joined':
                    show(e.data.userName + ' joined', 'system');
                    break;
                case 'user-left':
                    show(e.data.userName + ' left', 'system');
                    break;
                case 'message':
                    if (e.data.isSystem) {
                        show(e.data.message, 'system');
                    } else {
                        show(e.data.userName + ': ' + e.data.message, 'chat');
                    }
                    break;
                }
            };
            ws.onclose = function() { show('Disconnected', 'system'); ws = null; };
        }

        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                show('Not connected', 'error');
                return;
            }
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function join() {
            if (!ws) { connect(); }
            const doJoin = function() {
                emit('join-room', {
                    userName: document.getElementById('nameInput').value,
                    roomId: document.getElementById('roomInput').value
                });
            };
            if (ws.readyState === WebSocket.OPEN) { doJoin(); } else { ws.onopen = doJoin; }
        }

        function leave() { emit('leave-room', null); }

        function send() {
            const input = document.getElementById('messageInput');
            emit('message', {message: input.value});
            input.value = '';
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { send(); }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		h.log.Warn("error writing test page", "error", err)
	}
}
