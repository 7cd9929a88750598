// Package server implements the core of the RelayChat service: the room
// registry, session tracking, the broadcast engine, and the connection-event
// dispatcher, together with the WebSocket and HTTP surface around them.
//
// The implementation is organized into specialized files for configuration,
// validation, registry, dispatch, hub management, clients, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project
// grows.
package server
