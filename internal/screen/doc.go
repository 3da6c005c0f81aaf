// Package screen owns the in-memory table of currently-connected screens.
//
// The Registry is the sole owner of live session handles and routing
// metadata. Other components hold a reference to the Registry and work
// through its methods; session handles never cross a concurrency domain
// directly, only message sends do.
package screen
