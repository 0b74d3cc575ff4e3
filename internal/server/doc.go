// Package server implements the chat relay: WebSocket connections joined to
// named rooms, room-scoped message broadcast backed by the persistent message
// log, and the HTTP upload/download gateways for file attachments.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the room registry, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package server
