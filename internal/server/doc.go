// Package server implements the WebSocket state stream.
//
// This package exposes the bridge's reconciled unit states to other
// software on the network. Subscribers connect to /stream over plain
// WebSocket and receive one JSON message per state change; a snapshot
// of every known unit is replayed on connect so a subscriber never
// starts blind.
//
// # Message Format
//
//	{
//	  "device": "1.13",
//	  "name": "Living Room",
//	  "power": true,
//	  "target_temp": 23,
//	  "current_temp": 26,
//	  "mode": "cool",
//	  "fan": "auto",
//	  "at": "2026-08-30T10:30:45.123Z"
//	}
//
// # Usage Example
//
//	srv := server.New(&server.Config{Listen: ":8673"})
//	go srv.Start(ctx)
//	...
//	srv.Publish(server.StateUpdate{Device: "1.13", Power: true, ...})
//
// # Graceful Shutdown
//
// Cancelling the Start context stops accepting new subscribers, closes
// existing connections, and shuts the HTTP listener down cleanly.
//
// # Thread Safety
//
// Publish and the subscriber handlers share a mutex; writes to each
// WebSocket connection are serialized through it.
package server
