// Package backend is the Agora realtime core: websocket sessions, typing
// indicators, presence and notification fan-out shared by every server
// process through Redis.
//
// The code is organized into subpackages:
//
//   - internal/websocket: connection registry, hub and per-connection sessions
//   - internal/typing: typing register and the expiry sweep
//   - internal/presence: online, community and connection presence in Redis
//   - internal/notifications: delivery engine, offline queue and inbox
//   - internal/cache: the shared bus over go-redis
//   - internal/handlers: REST endpoints
//   - internal/container: object graph and shutdown order
//
// Binaries live under cmd/: server, migrate, seed and agoractl.
package backend
