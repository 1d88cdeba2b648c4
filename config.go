package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/UseLizard/NocturneCompanion/bluetooth"
	"github.com/UseLizard/NocturneCompanion/protocol"
)

// Config is the resolved runtime configuration.
type Config struct {
	DeviceName  string
	ServiceUUID string
	ScanTimeout time.Duration
	ListenAddr  string
	LogFile     string
}

// config.toml key mapping.
type fileConfig struct {
	DeviceName     string `toml:"device_name"`
	ServiceUUID    string `toml:"service_uuid"`
	ScanTimeoutSec int    `toml:"scan_timeout_sec"`
	ListenAddr     string `toml:"listen_addr"`
	LogFile        string `toml:"log_file"`
}

func defaultConfig() Config {
	return Config{
		DeviceName:  bluetooth.DeviceName,
		ServiceUUID: protocol.ServiceUUID,
		ScanTimeout: bluetooth.DefaultScanTimeout,
		ListenAddr:  ":8182",
	}
}

// loadConfig overlays config.toml onto the defaults. An empty path means
// defaults only.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("device_name") {
		cfg.DeviceName = strings.TrimSpace(raw.DeviceName)
	}
	if meta.IsDefined("service_uuid") {
		cfg.ServiceUUID = strings.TrimSpace(raw.ServiceUUID)
	}
	if meta.IsDefined("scan_timeout_sec") {
		if raw.ScanTimeoutSec <= 0 {
			return Config{}, fmt.Errorf("load config: scan_timeout_sec must be positive, got %d", raw.ScanTimeoutSec)
		}
		cfg.ScanTimeout = time.Duration(raw.ScanTimeoutSec) * time.Second
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	if cfg.DeviceName == "" {
		return Config{}, fmt.Errorf("load config: device_name must not be empty")
	}
	if cfg.ServiceUUID == "" {
		return Config{}, fmt.Errorf("load config: service_uuid must not be empty")
	}

	return cfg, nil
}
