package location

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomHasZones is returned when trying to delete a room that still has zones.
	ErrRoomHasZones = errors.New("room has zones: delete zones first")

	// ErrZoneNotFound is returned when a zone ID does not exist.
	ErrZoneNotFound = errors.New("zone not found")
)
