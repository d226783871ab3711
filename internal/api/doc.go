// Package api implements the HTTP REST API and WebSocket stream.
//
// This package provides:
//   - REST endpoints for entity state, events, services, script functions,
//     triggers, reload and one-shot expression evaluation
//   - WebSocket hub relaying state changes and fired events
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Routes
//
// All routes live under /api/v1. /health, /auth/login and /ws are public;
// every other route requires an "Authorization: Bearer <token>" header
// obtained from /auth/login.
//
// # WebSocket channels
//
// Clients subscribe to channels. "state_changed" carries every state
// write; "event.<type>" carries fired events of one type and "event.*"
// all of them. "*" receives everything.
package api
