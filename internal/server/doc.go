// Package server implements the transport boundary of the chat relay: the
// WebSocket endpoint, per-connection read/write pumps, the HTTP history API,
// and the hub that tracks connection lifecycle.
//
// The package is deliberately thin. Every chat decision (who an event fans
// out to, what gets logged, what gets rejected) lives in internal/chat; this
// package only frames events on and off the wire and keeps connections alive.
package server
