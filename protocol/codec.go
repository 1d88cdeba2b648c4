package protocol

import (
	"encoding/json"
)

// Command tags understood by NocturneCompanion.
const (
	CmdPlay      = "play"
	CmdPause     = "pause"
	CmdNext      = "next"
	CmdPrevious  = "previous"
	CmdSeekTo    = "seek_to"
	CmdSetVolume = "set_volume"
)

// Debug log levels sent on the debug characteristic.
type DebugLevel string

const (
	LevelError   DebugLevel = "ERROR"
	LevelWarning DebugLevel = "WARNING"
	LevelInfo    DebugLevel = "INFO"
	LevelDebug   DebugLevel = "DEBUG"
	LevelVerbose DebugLevel = "VERBOSE"
)

// Command is an outbound control message. value_ms is only meaningful for
// seek_to, value_percent only for set_volume; both stay nil otherwise.
type Command struct {
	Command      string `json:"command"`
	ValueMs      *int   `json:"value_ms,omitempty"`
	ValuePercent *int   `json:"value_percent,omitempty"`
}

// Event is the tagged union of everything a notification can decode into.
type Event interface {
	event()
}

// StateUpdate is a playback state message from the state characteristic.
// Missing fields are filled with the protocol defaults at decode time.
type StateUpdate struct {
	Track         string
	Artist        string
	IsPlaying     bool
	VolumePercent int
}

// DebugEvent is a log line from the debug characteristic.
type DebugEvent struct {
	Level   DebugLevel
	Type    string
	Message string
	Data    interface{}
}

// GenericEvent carries any well-formed JSON document that does not map to
// a more specific message kind. Unknown state message types pass through
// here so newer companion builds keep working against this client.
type GenericEvent struct {
	Doc interface{}
}

// RawEvent carries notification bytes that failed to parse. The payload is
// preserved verbatim so callers can fall back to a hex display.
type RawEvent struct {
	Payload []byte
}

func (*StateUpdate) event()  {}
func (*DebugEvent) event()   {}
func (*GenericEvent) event() {}
func (*RawEvent) event()     {}

// DeviceInfo is the capability document read once from the info
// characteristic. The client treats it opaquely.
type DeviceInfo struct {
	Raw    json.RawMessage
	Fields map[string]interface{}
}

// EncodeCommand serializes a command to its JSON wire form. The populated
// fields must be exactly the ones the command tag calls for.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch cmd.Command {
	case CmdPlay, CmdPause, CmdNext, CmdPrevious:
		if cmd.ValueMs != nil || cmd.ValuePercent != nil {
			return nil, &EncodingError{Reason: "command " + cmd.Command + " takes no value"}
		}
	case CmdSeekTo:
		if cmd.ValueMs == nil {
			return nil, &EncodingError{Reason: "seek_to requires value_ms"}
		}
		if cmd.ValuePercent != nil {
			return nil, &EncodingError{Reason: "seek_to takes no value_percent"}
		}
	case CmdSetVolume:
		if cmd.ValuePercent == nil {
			return nil, &EncodingError{Reason: "set_volume requires value_percent"}
		}
		if cmd.ValueMs != nil {
			return nil, &EncodingError{Reason: "set_volume takes no value_ms"}
		}
	default:
		return nil, &EncodingError{Reason: "unrecognized command tag: " + cmd.Command}
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, &EncodingError{Reason: err.Error()}
	}
	return data, nil
}

// DecodeNotification parses a notification payload and shapes it according
// to the source role. It never fails: malformed payloads come back as a
// RawEvent wrapping the original bytes so no traffic is dropped.
func DecodeNotification(role EndpointRole, payload []byte) Event {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return &RawEvent{Payload: raw}
	}

	switch role {
	case StateSource:
		if fields, ok := doc.(map[string]interface{}); ok {
			if t, _ := fields["type"].(string); t == "stateUpdate" {
				return decodeStateUpdate(payload)
			}
		}
		return &GenericEvent{Doc: doc}
	case DebugSource:
		return decodeDebugEvent(payload)
	default:
		return &GenericEvent{Doc: doc}
	}
}

// DecodeInfo parses the device capability document. Unlike notifications,
// a malformed info read is surfaced as an error: a broken capability probe
// should be visible, not silently swallowed.
func DecodeInfo(payload []byte) (*DeviceInfo, error) {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &DecodingError{Cause: err}
	}

	info := &DeviceInfo{Raw: append(json.RawMessage(nil), payload...)}
	if fields, ok := doc.(map[string]interface{}); ok {
		info.Fields = fields
	}
	return info, nil
}

type stateUpdateWire struct {
	Track         *string `json:"track"`
	Artist        *string `json:"artist"`
	IsPlaying     *bool   `json:"is_playing"`
	VolumePercent *int    `json:"volume_percent"`
}

func decodeStateUpdate(payload []byte) Event {
	var wire stateUpdateWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		// Field type mismatch on an otherwise valid document, e.g. a
		// string volume. Keep the traffic rather than dropping it.
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return &RawEvent{Payload: raw}
	}

	update := &StateUpdate{
		Track:  "Unknown",
		Artist: "Unknown",
	}
	if wire.Track != nil {
		update.Track = *wire.Track
	}
	if wire.Artist != nil {
		update.Artist = *wire.Artist
	}
	if wire.IsPlaying != nil {
		update.IsPlaying = *wire.IsPlaying
	}
	if wire.VolumePercent != nil {
		update.VolumePercent = *wire.VolumePercent
	}
	return update
}

type debugEventWire struct {
	Level   string      `json:"level"`
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func decodeDebugEvent(payload []byte) Event {
	var wire debugEventWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return &RawEvent{Payload: raw}
	}

	evt := &DebugEvent{
		Level:   normalizeLevel(wire.Level),
		Type:    wire.Type,
		Message: wire.Message,
		Data:    wire.Data,
	}
	if evt.Type == "" {
		evt.Type = "LOG"
	}
	return evt
}

func normalizeLevel(level string) DebugLevel {
	switch DebugLevel(level) {
	case LevelError, LevelWarning, LevelInfo, LevelDebug, LevelVerbose:
		return DebugLevel(level)
	default:
		return LevelInfo
	}
}
