// Package server wires the HTTP handlers into a router.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes configures and returns the application router with all endpoints:
// health check, administrative status, WebSocket upgrade, and test page.
func (h *Handlers) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.WebSocket).Methods(http.MethodGet)
	r.HandleFunc("/", h.TestPage).Methods(http.MethodGet)
	return r
}
