package utils

// WebSocketEvent is the envelope for every message pushed to monitor
// clients on /ws.
type WebSocketEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SessionStatePayload announces session lifecycle transitions.
type SessionStatePayload struct {
	State string `json:"state"`
	Peer  string `json:"peer,omitempty"`
	Error string `json:"error,omitempty"`
}

// MediaStatePayload mirrors a decoded stateUpdate notification.
type MediaStatePayload struct {
	Track         string `json:"track"`
	Artist        string `json:"artist"`
	IsPlaying     bool   `json:"is_playing"`
	VolumePercent int    `json:"volume_percent"`
	ReceivedAt    int64  `json:"received_at"`
}

// DebugLogPayload mirrors a decoded debug log notification.
type DebugLogPayload struct {
	Level      string      `json:"level"`
	Type       string      `json:"type"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	ReceivedAt int64       `json:"received_at"`
}

// RawPayload carries a notification that failed to decode, hex-encoded.
type RawPayload struct {
	Endpoint   string `json:"endpoint"`
	Hex        string `json:"hex"`
	ReceivedAt int64  `json:"received_at"`
}

// CommandSentPayload echoes a command handed to the transport.
type CommandSentPayload struct {
	Command      string `json:"command"`
	ValueMs      *int   `json:"value_ms,omitempty"`
	ValuePercent *int   `json:"value_percent,omitempty"`
}
