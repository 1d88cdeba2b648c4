package protocol

import "fmt"

// EncodingError indicates a command could not be serialized: unknown
// command tag, or the fields populated do not match the tag.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s", e.Reason)
}

// DecodingError indicates the device info payload was not valid JSON.
// Notification decoding never produces this; it degrades to a RawEvent.
type DecodingError struct {
	Cause error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %v", e.Cause)
}

func (e *DecodingError) Unwrap() error { return e.Cause }

// ValidationError indicates a command argument was rejected before any
// encoding or transport write took place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// HandlerError wraps a panic raised by a notification handler. It is
// reported locally; the router keeps delivering subsequent notifications.
type HandlerError struct {
	Role  EndpointRole
	Cause error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s endpoint failed: %v", e.Role, e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }
