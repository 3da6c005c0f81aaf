// Package bus bridges the MQTT broker and the rest of the server.
//
// The bridge runs in its own goroutine (Run) that owns the MQTT client
// outright: connection lifecycle, reconnect backoff, inbound dispatch, and
// the outbound publish queue all live on that goroutine. Other components
// interact with the bridge only through Publish and its helpers, which
// enqueue without blocking, and through handlers invoked from the bridge's
// goroutine. Inbound navigate messages fan out to matching screens through
// the registry and the topic router.
package bus
