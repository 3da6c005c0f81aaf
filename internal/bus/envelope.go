package bus

import "encoding/json"

// Kind classifies an inbound bus message by its "type" field.
type Kind int

const (
	// KindUnknown is a well-formed JSON object with an unrecognised or
	// missing type. Forward-compatible: handlers may still inspect Fields.
	KindUnknown Kind = iota

	// KindNavigate instructs matching screens to show a page.
	KindNavigate

	// KindHeartbeat is a device liveness report.
	KindHeartbeat

	// KindState is a device state report.
	KindState

	// KindRaw is a payload that did not decode as JSON. The original bytes
	// are preserved in Raw.
	KindRaw
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindNavigate:
		return "navigate"
	case KindHeartbeat:
		return "heartbeat"
	case KindState:
		return "state"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Envelope is a decoded inbound bus message. Exactly one interpretation
// applies: typed fields for recognised kinds, Fields for unknown JSON,
// Raw for undecodable payloads.
type Envelope struct {
	Kind Kind

	// Type is the raw "type" field value, "" when absent.
	Type string

	// Navigate fields.
	PageID string
	Params map[string]any
	Source string

	// Heartbeat/state fields.
	DeviceID string
	Status   string

	// Fields is the full decoded JSON object, nil for KindRaw.
	Fields map[string]any

	// Raw holds the original payload for KindRaw.
	Raw []byte
}

// DecodeEnvelope interprets an inbound payload. It never fails: payloads
// that are not JSON objects come back as KindRaw.
func DecodeEnvelope(payload []byte) Envelope {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return Envelope{Kind: KindRaw, Raw: payload}
	}

	env := Envelope{Fields: fields}
	env.Type, _ = fields["type"].(string)

	switch env.Type {
	case "navigate":
		env.Kind = KindNavigate
		env.PageID, _ = fields["page_id"].(string)
		env.Params, _ = fields["params"].(map[string]any)
		env.Source, _ = fields["source"].(string)
	case "heartbeat":
		env.Kind = KindHeartbeat
		env.DeviceID, _ = fields["device_id"].(string)
		env.Status, _ = fields["status"].(string)
	case "state":
		env.Kind = KindState
		env.DeviceID, _ = fields["device_id"].(string)
		env.Status, _ = fields["status"].(string)
	default:
		env.Kind = KindUnknown
	}
	return env
}
