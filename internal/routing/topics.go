package routing

import "fmt"

// TopicPrefix is the base for all marchog bus topics.
//
// Addressing scheme: marchog/{shape}[/{target}]
const TopicPrefix = "marchog"

// Topics provides builders for marchog bus topics. Using these helpers keeps
// topic naming consistent across the codebase.
//
//	topics := routing.Topics{}
//	t := topics.Screen("scr-lobby-1")
//	// Returns: "marchog/screen/scr-lobby-1"
type Topics struct{}

// =============================================================================
// Addressing Topics
// =============================================================================

// All returns the broadcast topic matching every screen.
//
// Example: marchog/all
func (Topics) All() string {
	return fmt.Sprintf("%s/all", TopicPrefix)
}

// Screen returns the addressing topic for a single screen.
//
// Example: marchog/screen/scr-lobby-1
func (Topics) Screen(screenID string) string {
	return fmt.Sprintf("%s/screen/%s", TopicPrefix, screenID)
}

// Type returns the addressing topic for a device type.
//
// Example: marchog/type/door-panel
func (Topics) Type(deviceType string) string {
	return fmt.Sprintf("%s/type/%s", TopicPrefix, deviceType)
}

// Room returns the addressing topic for a room.
//
// Example: marchog/room/room-east-wing
func (Topics) Room(roomID string) string {
	return fmt.Sprintf("%s/room/%s", TopicPrefix, roomID)
}

// Zone returns the addressing topic for a zone.
//
// Example: marchog/zone/zone-reception
func (Topics) Zone(zoneID string) string {
	return fmt.Sprintf("%s/zone/%s", TopicPrefix, zoneID)
}

// =============================================================================
// Status Topics
// =============================================================================

// State returns the retained per-screen state topic.
//
// Example: marchog/state/scr-lobby-1
func (Topics) State(screenID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, screenID)
}

// Heartbeat returns the retained per-screen heartbeat topic.
//
// Example: marchog/heartbeat/scr-lobby-1
func (Topics) Heartbeat(screenID string) string {
	return fmt.Sprintf("%s/heartbeat/%s", TopicPrefix, screenID)
}

// Event returns the topic for server-originated events.
//
// Example: marchog/event/scene-activated
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// AlertStaleScreen returns the topic for staleness alerts from the health
// monitor.
//
// Example: marchog/alert/stale-screen
func (Topics) AlertStaleScreen() string {
	return fmt.Sprintf("%s/alert/stale-screen", TopicPrefix)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllActions returns a pattern matching all action messages.
//
// Pattern: marchog/action/#
func (Topics) AllActions() string {
	return fmt.Sprintf("%s/action/#", TopicPrefix)
}

// AllEvents returns a pattern matching all event messages.
//
// Pattern: marchog/event/#
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/#", TopicPrefix)
}

// AllSensors returns a pattern matching all sensor messages.
//
// Pattern: marchog/sensor/#
func (Topics) AllSensors() string {
	return fmt.Sprintf("%s/sensor/#", TopicPrefix)
}

// AllHeartbeats returns a pattern matching all heartbeat messages.
//
// Pattern: marchog/heartbeat/#
func (Topics) AllHeartbeats() string {
	return fmt.Sprintf("%s/heartbeat/#", TopicPrefix)
}

// Subscriptions returns the full set of inbound subscription patterns the
// bus bridge establishes after each (re)connect.
func (t Topics) Subscriptions() []string {
	return []string{
		t.AllActions(),
		t.AllEvents(),
		t.AllSensors(),
		t.AllHeartbeats(),
	}
}
