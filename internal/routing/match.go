package routing

import "strings"

// Meta is the routing metadata for a connected screen. It is populated from
// the screen's current assignment at connection time and used only for topic
// matching, never for display decisions.
type Meta struct {
	// DeviceType is the screen's primary device type (e.g. "door-panel").
	DeviceType string

	// DeviceTypeSecondary is an optional second type the screen answers to.
	DeviceTypeSecondary string

	// ZoneID is the zone the screen is assigned to, if any.
	ZoneID string

	// RoomID is derived from the zone, if any.
	RoomID string
}

// Matches reports whether a message published to topic should be delivered
// to the screen identified by screenID with the given metadata.
//
// Recognised shapes under the marchog prefix:
//
//	marchog/all          every screen
//	marchog/screen/{id}  exact screen id
//	marchog/type/{t}     primary or secondary device type
//	marchog/room/{r}     room id
//	marchog/zone/{z}     zone id
//
// Any other shape matches nothing. The function is total and side-effect
// free: no topic string or metadata combination causes an error.
func Matches(topic, screenID string, meta Meta) bool {
	segments := strings.Split(topic, "/")
	if segments[0] != TopicPrefix {
		return false
	}

	switch len(segments) {
	case 2:
		return segments[1] == "all"
	case 3:
		target := segments[2]
		if target == "" {
			return false
		}
		switch segments[1] {
		case "screen":
			return target == screenID
		case "type":
			return target == meta.DeviceType || target == meta.DeviceTypeSecondary
		case "room":
			return target == meta.RoomID
		case "zone":
			return target == meta.ZoneID
		}
	}
	return false
}
