package bluetooth

import "time"

const (
	BluezBusName            = "org.bluez"
	AdapterInterface        = "org.bluez.Adapter1"
	DeviceInterface         = "org.bluez.Device1"
	ServiceInterface        = "org.bluez.GattService1"
	CharacteristicInterface = "org.bluez.GattCharacteristic1"
	PropertiesInterface     = "org.freedesktop.DBus.Properties"
	ObjectManagerInterface  = "org.freedesktop.DBus.ObjectManager"

	// Device identification
	DeviceName = "NocturneCompanion"

	// Scan/connect configuration
	DefaultScanTimeout      = 10 * time.Second
	ScanPollInterval        = 1 * time.Second
	ServicesResolvedTimeout = 10 * time.Second
)
