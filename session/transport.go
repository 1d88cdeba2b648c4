package session

import (
	"fmt"
	"time"
)

// Transport is the GATT collaborator the session drives. Implementations
// deliver notification callbacks one at a time, in arrival order.
type Transport interface {
	// Connect discovers the peer and establishes the link. Idempotent.
	Connect() error
	// Read performs a one-shot characteristic read.
	Read(characteristicUUID string) ([]byte, error)
	// Write hands one message to a characteristic.
	Write(characteristicUUID string, payload []byte) error
	// Subscribe enables notifications and registers the callback.
	Subscribe(characteristicUUID string, fn func(payload []byte, receivedAt time.Time)) error
	// Disconnect releases the link. Idempotent.
	Disconnect() error
}

// ConnectionError is a transport-level failure to establish or keep the
// link. The session aborts to Disconnected when it sees one.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ReadError is a failed characteristic read.
type ReadError struct {
	Characteristic string
	Cause          error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Characteristic, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }

// WriteError is a failed or rejected characteristic write.
type WriteError struct {
	Characteristic string
	Cause          error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Characteristic, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

// SubscribeError is a failed notification subscription.
type SubscribeError struct {
	Characteristic string
	Cause          error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Characteristic, e.Cause)
}

func (e *SubscribeError) Unwrap() error { return e.Cause }
