package bluetooth

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/UseLizard/NocturneCompanion/protocol"
	"github.com/UseLizard/NocturneCompanion/session"
)

// Config controls device discovery.
type Config struct {
	DeviceName  string        // advertised name to match, e.g. "NocturneCompanion"
	ServiceUUID string        // fallback match on advertised service UUID
	ScanTimeout time.Duration // how long to scan before giving up
}

// DefaultConfig returns the discovery settings for a stock companion build.
func DefaultConfig() Config {
	return Config{
		DeviceName:  DeviceName,
		ServiceUUID: protocol.ServiceUUID,
		ScanTimeout: DefaultScanTimeout,
	}
}

// Transport is a BlueZ GATT central speaking D-Bus, implementing
// session.Transport against one NocturneCompanion peer.
type Transport struct {
	mu   sync.Mutex
	conn *dbus.Conn
	cfg  Config

	adapterPath   dbus.ObjectPath
	devicePath    dbus.ObjectPath
	deviceAddress string

	// lowercase characteristic UUID -> BlueZ object
	chars map[string]dbus.BusObject
	// characteristic object path -> notification callback
	subs map[dbus.ObjectPath]func(payload []byte, receivedAt time.Time)

	sigChan      chan *dbus.Signal
	stopChan     chan struct{}
	stopOnce     sync.Once
	connected    bool
	onDisconnect func(error)
}

// NewTransport connects to the system D-Bus and prepares a transport. No
// BLE traffic happens until Connect.
func NewTransport(cfg Config) (*Transport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}

	if cfg.DeviceName == "" {
		cfg.DeviceName = DeviceName
	}
	if cfg.ServiceUUID == "" {
		cfg.ServiceUUID = protocol.ServiceUUID
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}

	return &Transport{
		conn:     conn,
		cfg:      cfg,
		chars:    make(map[string]dbus.BusObject),
		subs:     make(map[dbus.ObjectPath]func([]byte, time.Time)),
		stopChan: make(chan struct{}),
	}, nil
}

// SetDisconnectHandler registers the callback invoked when BlueZ reports
// the link dropped. Must be called before Connect.
func (t *Transport) SetDisconnectHandler(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

// PeerAddress returns the Bluetooth address of the connected device.
func (t *Transport) PeerAddress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deviceAddress
}

// Connect scans for the companion, connects, and discovers the protocol
// characteristics. Idempotent: a second call on a live link is a no-op.
func (t *Transport) Connect() error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	adapterPath, err := t.findAdapter()
	if err != nil {
		return &session.ConnectionError{Cause: err}
	}
	t.adapterPath = adapterPath

	devicePath, address, err := t.findDevice()
	if err != nil {
		return &session.ConnectionError{Cause: err}
	}
	log.Printf("BLE: found device %s at %s", address, devicePath)

	device := t.conn.Object(BluezBusName, devicePath)
	if err := device.Call(DeviceInterface+".Connect", 0).Store(); err != nil {
		return &session.ConnectionError{Cause: fmt.Errorf("failed to connect to device: %w", err)}
	}

	if err := t.waitServicesResolved(device); err != nil {
		device.Call(DeviceInterface+".Disconnect", 0).Store()
		return &session.ConnectionError{Cause: err}
	}

	if err := t.discoverCharacteristics(devicePath); err != nil {
		device.Call(DeviceInterface+".Disconnect", 0).Store()
		return &session.ConnectionError{Cause: err}
	}

	if err := t.startSignalLoop(devicePath); err != nil {
		device.Call(DeviceInterface+".Disconnect", 0).Store()
		return &session.ConnectionError{Cause: err}
	}

	t.mu.Lock()
	t.devicePath = devicePath
	t.deviceAddress = address
	t.connected = true
	t.mu.Unlock()

	log.Printf("BLE: connected to %s", address)
	return nil
}

// Read performs a one-shot characteristic read.
func (t *Transport) Read(characteristicUUID string) ([]byte, error) {
	char, err := t.characteristic(characteristicUUID)
	if err != nil {
		return nil, &session.ReadError{Characteristic: characteristicUUID, Cause: err}
	}

	var value []byte
	call := char.Call(CharacteristicInterface+".ReadValue", 0, map[string]dbus.Variant{})
	if err := call.Store(&value); err != nil {
		return nil, &session.ReadError{Characteristic: characteristicUUID, Cause: err}
	}
	return value, nil
}

// Write hands one message to a characteristic. One message per write; no
// fragmentation is performed here.
func (t *Transport) Write(characteristicUUID string, payload []byte) error {
	char, err := t.characteristic(characteristicUUID)
	if err != nil {
		return &session.WriteError{Characteristic: characteristicUUID, Cause: err}
	}

	call := char.Call(CharacteristicInterface+".WriteValue", 0, payload, map[string]dbus.Variant{})
	if err := call.Store(); err != nil {
		return &session.WriteError{Characteristic: characteristicUUID, Cause: err}
	}
	return nil
}

// Subscribe enables notifications on a characteristic. BlueZ writes the
// CCCD itself through StartNotify.
func (t *Transport) Subscribe(characteristicUUID string, fn func(payload []byte, receivedAt time.Time)) error {
	char, err := t.characteristic(characteristicUUID)
	if err != nil {
		return &session.SubscribeError{Characteristic: characteristicUUID, Cause: err}
	}

	t.mu.Lock()
	t.subs[char.Path()] = fn
	t.mu.Unlock()

	if err := char.Call(CharacteristicInterface+".StartNotify", 0).Store(); err != nil {
		t.mu.Lock()
		delete(t.subs, char.Path())
		t.mu.Unlock()
		return &session.SubscribeError{Characteristic: characteristicUUID, Cause: err}
	}
	return nil
}

// Disconnect releases the link. Idempotent.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	devicePath := t.devicePath
	wasConnected := t.connected
	t.connected = false
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stopChan) })

	if !wasConnected || devicePath == "" {
		return nil
	}

	device := t.conn.Object(BluezBusName, devicePath)
	if err := device.Call(DeviceInterface+".Disconnect", 0).Store(); err != nil {
		log.Printf("BLE: disconnect call failed: %v", err)
	}
	log.Println("BLE: disconnected")
	return nil
}

func (t *Transport) characteristic(uuid string) (dbus.BusObject, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	char, ok := t.chars[strings.ToLower(uuid)]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not discovered (not connected?)", uuid)
	}
	return char, nil
}

func (t *Transport) findAdapter() (dbus.ObjectPath, error) {
	managed, err := t.getManagedObjects()
	if err != nil {
		return "", err
	}

	for path, object := range managed {
		if _, ok := object[AdapterInterface]; ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("bluetooth adapter not found")
}

// findDevice scans until the companion shows up or the scan timeout hits.
// Matches by advertised name first, then by service UUID.
func (t *Transport) findDevice() (dbus.ObjectPath, string, error) {
	adapter := t.conn.Object(BluezBusName, t.adapterPath)
	if err := adapter.Call(AdapterInterface+".StartDiscovery", 0).Store(); err != nil {
		log.Printf("BLE: could not start discovery: %v", err)
	} else {
		defer adapter.Call(AdapterInterface+".StopDiscovery", 0).Store()
	}

	log.Printf("BLE: scanning for %s (service %s)...", t.cfg.DeviceName, t.cfg.ServiceUUID)

	deadline := time.Now().Add(t.cfg.ScanTimeout)
	for {
		managed, err := t.getManagedObjects()
		if err != nil {
			return "", "", err
		}

		for path, object := range managed {
			props, ok := object[DeviceInterface]
			if !ok {
				continue
			}
			if adapterPath, ok := props["Adapter"].Value().(dbus.ObjectPath); !ok || adapterPath != t.adapterPath {
				continue
			}

			name, _ := props["Name"].Value().(string)
			address, _ := props["Address"].Value().(string)

			if name == t.cfg.DeviceName {
				return path, address, nil
			}
			if uuids, ok := props["UUIDs"].Value().([]string); ok {
				for _, uuid := range uuids {
					if strings.EqualFold(uuid, t.cfg.ServiceUUID) {
						return path, address, nil
					}
				}
			}
		}

		if time.Now().After(deadline) {
			return "", "", fmt.Errorf("%s not found within %v", t.cfg.DeviceName, t.cfg.ScanTimeout)
		}
		time.Sleep(ScanPollInterval)
	}
}

func (t *Transport) waitServicesResolved(device dbus.BusObject) error {
	deadline := time.Now().Add(ServicesResolvedTimeout)
	for {
		var resolved bool
		err := device.Call(PropertiesInterface+".Get", 0, DeviceInterface, "ServicesResolved").Store(&resolved)
		if err == nil && resolved {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("service discovery did not complete within %v", ServicesResolvedTimeout)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func (t *Transport) discoverCharacteristics(devicePath dbus.ObjectPath) error {
	managed, err := t.getManagedObjects()
	if err != nil {
		return err
	}

	var servicePath dbus.ObjectPath
	for path, object := range managed {
		props, ok := object[ServiceInterface]
		if !ok {
			continue
		}
		device, _ := props["Device"].Value().(dbus.ObjectPath)
		uuid, _ := props["UUID"].Value().(string)
		if device == devicePath && strings.EqualFold(uuid, t.cfg.ServiceUUID) {
			servicePath = path
			break
		}
	}
	if servicePath == "" {
		return fmt.Errorf("service %s not found on device", t.cfg.ServiceUUID)
	}

	chars := make(map[string]dbus.BusObject)
	for path, object := range managed {
		props, ok := object[CharacteristicInterface]
		if !ok {
			continue
		}
		if service, _ := props["Service"].Value().(dbus.ObjectPath); service != servicePath {
			continue
		}
		if uuid, ok := props["UUID"].Value().(string); ok {
			chars[strings.ToLower(uuid)] = t.conn.Object(BluezBusName, path)
			log.Printf("BLE: found characteristic %s", uuid)
		}
	}

	for _, required := range []string{
		protocol.CommandCharUUID,
		protocol.StateCharUUID,
		protocol.DebugCharUUID,
		protocol.InfoCharUUID,
	} {
		if _, ok := chars[strings.ToLower(required)]; !ok {
			return fmt.Errorf("characteristic %s missing from service", required)
		}
	}

	t.mu.Lock()
	t.chars = chars
	t.mu.Unlock()
	return nil
}

func (t *Transport) startSignalLoop(devicePath dbus.ObjectPath) error {
	rules := []string{
		"type='signal',interface='" + PropertiesInterface + "',member='PropertiesChanged',arg0='" + CharacteristicInterface + "'",
		"type='signal',interface='" + PropertiesInterface + "',member='PropertiesChanged',arg0='" + DeviceInterface + "'",
	}
	for _, rule := range rules {
		call := t.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
		if call.Err != nil {
			return fmt.Errorf("failed to add match signal: %w", call.Err)
		}
	}

	t.sigChan = make(chan *dbus.Signal, 64)
	t.conn.Signal(t.sigChan)

	go t.handleSignals(devicePath)
	return nil
}

// handleSignals is the single delivery goroutine; notifications for one
// characteristic reach their callback in D-Bus arrival order.
func (t *Transport) handleSignals(devicePath dbus.ObjectPath) {
	for {
		select {
		case <-t.stopChan:
			return
		case sig, ok := <-t.sigChan:
			if !ok {
				return
			}
			if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" || len(sig.Body) < 2 {
				continue
			}
			interfaceName, _ := sig.Body[0].(string)
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}

			switch interfaceName {
			case CharacteristicInterface:
				t.deliverNotification(sig.Path, changed)
			case DeviceInterface:
				if sig.Path == devicePath {
					t.checkLinkState(changed)
				}
			}
		}
	}
}

func (t *Transport) deliverNotification(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	variant, ok := changed["Value"]
	if !ok {
		return
	}
	value, ok := variant.Value().([]byte)
	if !ok {
		return
	}
	receivedAt := time.Now()

	t.mu.Lock()
	fn := t.subs[path]
	t.mu.Unlock()

	if fn != nil {
		fn(value, receivedAt)
	}
}

func (t *Transport) checkLinkState(changed map[string]dbus.Variant) {
	variant, ok := changed["Connected"]
	if !ok {
		return
	}
	if connected, ok := variant.Value().(bool); !ok || connected {
		return
	}

	t.mu.Lock()
	wasConnected := t.connected
	t.connected = false
	handler := t.onDisconnect
	t.mu.Unlock()

	if wasConnected {
		log.Println("BLE: device reported disconnected")
		if handler != nil {
			handler(fmt.Errorf("peer disconnected"))
		}
	}
}

func (t *Transport) getManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := t.conn.Object(BluezBusName, "/")
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := obj.Call(ObjectManagerInterface+".GetManagedObjects", 0).Store(&managed)
	if err != nil {
		return nil, fmt.Errorf("failed to get managed objects: %w", err)
	}
	return managed, nil
}
