// Package gateway accepts per-screen WebSocket connections and speaks the
// screen protocol: registration ack, assignment push, liveness pings, and
// client-reported state.
//
// Each connection gets a buffered send channel drained by its write pump,
// so deliveries from other goroutines (the bus bridge, the scene engine,
// the HTTP API) never block on a slow screen. The gateway is also the
// disconnect path: it releases the registry entry and publishes retained
// offline status to the bus, best-effort.
package gateway
