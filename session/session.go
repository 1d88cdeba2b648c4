package session

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/UseLizard/NocturneCompanion/protocol"
	"github.com/UseLizard/NocturneCompanion/utils"
)

// State is the session lifecycle position. Transitions are strictly
// forward; Disconnected is reachable from anywhere and terminal.
type State int

const (
	Idle State = iota
	Discovering
	Connected
	InfoLoaded
	Subscribed
	Active
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovering:
		return "discovering"
	case Connected:
		return "connected"
	case InfoLoaded:
		return "info_loaded"
	case Subscribed:
		return "subscribed"
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one connect-to-disconnect lifetime against a single peer.
// Instantiate one per connection; a finished session is never reused
// (reconnection is a new session).
type Session struct {
	mu         sync.RWMutex
	transport  Transport
	router     *protocol.Router
	dispatcher *protocol.Dispatcher
	wsHub      *utils.WebSocketHub

	state      State
	deviceInfo *protocol.DeviceInfo
	lastState  *protocol.StateUpdate

	onState protocol.Handler
	onDebug protocol.Handler
}

// New creates a session bound to a transport. hub may be nil when no
// monitor clients are wanted (tests, headless runs).
func New(transport Transport, hub *utils.WebSocketHub) *Session {
	s := &Session{
		transport: transport,
		wsHub:     hub,
		state:     Idle,
	}
	s.router = protocol.NewRouter(func(err *protocol.HandlerError) {
		log.Printf("SESSION: stream still alive, %v", err)
	})
	s.dispatcher = protocol.NewDispatcher(&commandEcho{s: s})
	s.router.Subscribe(protocol.StateSource, s.handleStateEvent)
	s.router.Subscribe(protocol.DebugSource, s.handleDebugEvent)
	return s
}

// Start walks the session forward: connect, load the capability document,
// subscribe to both notification streams, and go active. Any failure
// aborts the session to Disconnected.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", state)
	}
	s.mu.Unlock()

	s.setState(Discovering)
	if err := s.transport.Connect(); err != nil {
		s.abort(err)
		return err
	}
	s.setState(Connected)

	payload, err := s.transport.Read(protocol.Resolve(protocol.InfoSource))
	if err != nil {
		s.abort(err)
		return err
	}
	info, err := protocol.DecodeInfo(payload)
	if err != nil {
		s.abort(err)
		return fmt.Errorf("capability probe failed: %w", err)
	}
	s.mu.Lock()
	s.deviceInfo = info
	s.mu.Unlock()
	s.setState(InfoLoaded)

	for _, role := range []protocol.EndpointRole{protocol.StateSource, protocol.DebugSource} {
		role := role
		char := protocol.Resolve(role)
		err := s.transport.Subscribe(char, func(payload []byte, receivedAt time.Time) {
			s.router.OnNotify(role, payload, receivedAt)
		})
		if err != nil {
			s.abort(err)
			return err
		}
		log.Printf("SESSION: subscribed to %s notifications", role)
	}
	s.setState(Subscribed)

	s.setState(Active)
	return nil
}

// Dispatcher returns the command dispatcher for this session.
func (s *Session) Dispatcher() *protocol.Dispatcher {
	return s.dispatcher
}

// OnState registers the presentation callback for state-source events.
func (s *Session) OnState(h protocol.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = h
}

// OnDebug registers the presentation callback for debug-source events.
func (s *Session) OnDebug(h protocol.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDebug = h
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DeviceInfo returns the capability document read during Start, or nil if
// the session never reached InfoLoaded.
func (s *Session) DeviceInfo() *protocol.DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceInfo
}

// LastState returns the most recent decoded state update, or nil.
func (s *Session) LastState() *protocol.StateUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastState
}

// Close releases the link and ends the session. Safe to call from any
// state and more than once; the session is terminal afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.transport.Disconnect()
	s.setState(Disconnected)
	log.Println("SESSION: session ended")
	return err
}

// LinkLost records a transport-level disconnect. The session moves to
// Disconnected; no reconnection is attempted.
func (s *Session) LinkLost(cause error) {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	log.Printf("SESSION: link lost, session ending: %v", cause)
	s.broadcast("session/link_lost", utils.SessionStatePayload{
		State: Disconnected.String(),
		Error: fmt.Sprintf("%v", cause),
	})
	s.setState(Disconnected)
}

func (s *Session) abort(cause error) {
	log.Printf("SESSION: aborting: %v", cause)
	s.transport.Disconnect()
	s.broadcast("session/error", utils.SessionStatePayload{
		State: Disconnected.String(),
		Error: cause.Error(),
	})
	s.setState(Disconnected)
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == Disconnected {
		// Terminal; a late transition must not resurrect the session.
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	log.Printf("SESSION: state -> %s", next)
	s.broadcast("session/state", utils.SessionStatePayload{State: next.String()})
}

func (s *Session) handleStateEvent(evt protocol.Event, receivedAt time.Time) {
	switch e := evt.(type) {
	case *protocol.StateUpdate:
		s.mu.Lock()
		s.lastState = e
		s.mu.Unlock()
		s.broadcast("media/state_update", utils.MediaStatePayload{
			Track:         e.Track,
			Artist:        e.Artist,
			IsPlaying:     e.IsPlaying,
			VolumePercent: e.VolumePercent,
			ReceivedAt:    receivedAt.UnixMilli(),
		})
	case *protocol.GenericEvent:
		s.broadcast("media/message", e.Doc)
	case *protocol.RawEvent:
		s.broadcast("media/raw", utils.RawPayload{
			Endpoint:   protocol.StateSource.String(),
			Hex:        hex.EncodeToString(e.Payload),
			ReceivedAt: receivedAt.UnixMilli(),
		})
	}

	s.mu.RLock()
	h := s.onState
	s.mu.RUnlock()
	if h != nil {
		h(evt, receivedAt)
	}
}

func (s *Session) handleDebugEvent(evt protocol.Event, receivedAt time.Time) {
	switch e := evt.(type) {
	case *protocol.DebugEvent:
		s.broadcast("debug/log", utils.DebugLogPayload{
			Level:      string(e.Level),
			Type:       e.Type,
			Message:    e.Message,
			Data:       e.Data,
			ReceivedAt: receivedAt.UnixMilli(),
		})
	case *protocol.RawEvent:
		s.broadcast("debug/raw", utils.RawPayload{
			Endpoint:   protocol.DebugSource.String(),
			Hex:        hex.EncodeToString(e.Payload),
			ReceivedAt: receivedAt.UnixMilli(),
		})
	}

	s.mu.RLock()
	h := s.onDebug
	s.mu.RUnlock()
	if h != nil {
		h(evt, receivedAt)
	}
}

// commandEcho forwards dispatcher writes to the transport and mirrors the
// sent command to monitor clients.
type commandEcho struct {
	s *Session
}

func (w *commandEcho) Write(characteristicUUID string, payload []byte) error {
	if err := w.s.transport.Write(characteristicUUID, payload); err != nil {
		return err
	}

	var cmd protocol.Command
	if err := json.Unmarshal(payload, &cmd); err == nil {
		w.s.broadcast("media/command_sent", utils.CommandSentPayload{
			Command:      cmd.Command,
			ValueMs:      cmd.ValueMs,
			ValuePercent: cmd.ValuePercent,
		})
	}
	return nil
}

func (s *Session) broadcast(eventType string, payload interface{}) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(utils.WebSocketEvent{Type: eventType, Payload: payload})
}
