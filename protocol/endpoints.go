package protocol

// EndpointRole is the protocol-level purpose of a GATT characteristic,
// independent of its transport address.
type EndpointRole int

const (
	CommandSink EndpointRole = iota // write-only, operator commands
	StateSource                     // notify-only, playback state updates
	DebugSource                     // notify-only, companion debug logs
	InfoSource                      // read-only, device capability document
)

// Service and characteristic UUIDs (Nordic UART compatible, must match
// the NocturneCompanion BLE service).
const (
	ServiceUUID     = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	CommandCharUUID = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E" // Write
	StateCharUUID   = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E" // Notify
	DebugCharUUID   = "6E400004-B5A3-F393-E0A9-E50E24DCCA9E" // Notify
	InfoCharUUID    = "6E400005-B5A3-F393-E0A9-E50E24DCCA9E" // Read
)

func (r EndpointRole) String() string {
	switch r {
	case CommandSink:
		return "command"
	case StateSource:
		return "state"
	case DebugSource:
		return "debug"
	case InfoSource:
		return "info"
	default:
		return "unknown"
	}
}

// Resolve maps an endpoint role to its characteristic UUID. The mapping is
// fixed for one protocol version and total over the role enum.
func Resolve(role EndpointRole) string {
	switch role {
	case CommandSink:
		return CommandCharUUID
	case StateSource:
		return StateCharUUID
	case DebugSource:
		return DebugCharUUID
	case InfoSource:
		return InfoCharUUID
	default:
		return ""
	}
}
