// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads the lock daemon configuration from TOML.
//
// Load overlays a file on top of Default, so a config file only needs the
// keys it changes. Durations are written as Go duration strings ("100ms",
// "5s"). Environment variables prefixed LYNX_ override a few deployment
// specific keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that decodes from a duration string.
type Duration struct {
	time.Duration
}

// UnmarshalText parses s with time.ParseDuration.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats d as a duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full daemon configuration.
type Config struct {
	Device    DeviceConfig    `toml:"device"`
	Log       LogConfig       `toml:"log"`
	Reader    ReaderConfig    `toml:"reader"`
	Actuator  ActuatorConfig  `toml:"actuator"`
	Indicator IndicatorConfig `toml:"indicator"`
	Access    AccessConfig    `toml:"access"`
	Sync      SyncConfig      `toml:"sync"`
	Store     StoreConfig     `toml:"store"`
}

// DeviceConfig identifies the lock.
type DeviceConfig struct {
	ID string `toml:"id"`
	// NetworkFile holds the wifi credentials handed to the provisioner.
	NetworkFile string `toml:"network_file"`
	// Simulate replaces every hardware component with a simulation.
	Simulate bool `toml:"simulate"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Reader transports.
const (
	TransportSPI  = "spi"
	TransportI2C  = "i2c"
	TransportUART = "uart"
)

// ReaderConfig selects the PN532 bus and the reader policy.
type ReaderConfig struct {
	Transport          string   `toml:"transport"`
	Port               string   `toml:"port"`
	PollInterval       Duration `toml:"poll_interval"`
	TransactionTimeout Duration `toml:"transaction_timeout"`
	Debounce           Duration `toml:"debounce"`
	MaxFailures        int      `toml:"max_failures"`
	PassiveRetries     int      `toml:"passive_retries"`
	SPISpeedHz         int64    `toml:"spi_speed_hz"`
}

// Actuator kinds.
const (
	ActuatorGPIO      = "gpio"
	ActuatorServo     = "servo"
	ActuatorSimulated = "simulated"
)

// ActuatorConfig describes the lock mechanism.
type ActuatorConfig struct {
	Kind           string   `toml:"kind"`
	Timeout        Duration `toml:"timeout"`
	UnlockPin      string   `toml:"unlock_pin"`
	LockPin        string   `toml:"lock_pin"`
	SensePin       string   `toml:"sense_pin"`
	SensePull      string   `toml:"sense_pull"`
	SettleDelay    Duration `toml:"settle_delay"`
	ServoPin       string   `toml:"servo_pin"`
	LockedAngle    int      `toml:"locked_angle"`
	UnlockedAngle  int      `toml:"unlocked_angle"`
	StepDelay      Duration `toml:"step_delay"`
	SimulatedDelay Duration `toml:"simulated_delay"`
}

// IndicatorConfig describes the status LED.
type IndicatorConfig struct {
	Enabled    bool     `toml:"enabled"`
	SPIPort    string   `toml:"spi_port"`
	Pixels     int      `toml:"pixels"`
	Brightness int      `toml:"brightness"`
	Flash      Duration `toml:"flash"`
}

// AccessConfig holds the state machine timing.
type AccessConfig struct {
	Hold Duration `toml:"hold"`
	// ChallengeSlot is the YubiKey slot (1 or 2) queried for credentials
	// that carry a secret.
	ChallengeSlot int `toml:"challenge_slot"`
}

// SyncConfig controls reconciliation with the remote service.
type SyncConfig struct {
	Enabled        bool     `toml:"enabled"`
	URL            string   `toml:"url"`
	Interval       Duration `toml:"interval"`
	BatchSize      int      `toml:"batch_size"`
	QueueCapacity  int      `toml:"queue_capacity"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// StoreConfig locates the persisted credentials.
type StoreConfig struct {
	// Database is the SQLite mirror path; empty keeps the store in memory.
	Database string `toml:"database"`
	// CredentialsFile is an optional local TOML credential list. It is
	// applied as the full set, so it cannot be combined with [sync], whose
	// downloads also replace the full set.
	CredentialsFile string `toml:"credentials_file"`
	// Watch reapplies CredentialsFile whenever it changes.
	Watch bool `toml:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{ID: "lynx"},
		Log:    LogConfig{Level: "info"},
		Reader: ReaderConfig{
			Transport:          TransportSPI,
			Port:               "/dev/spidev0.0",
			PollInterval:       Duration{100 * time.Millisecond},
			TransactionTimeout: Duration{50 * time.Millisecond},
			Debounce:           Duration{time.Second},
			MaxFailures:        5,
			PassiveRetries:     1,
			SPISpeedHz:         1_000_000,
		},
		Actuator: ActuatorConfig{
			Kind:           ActuatorGPIO,
			Timeout:        Duration{2 * time.Second},
			UnlockPin:      "GPIO17",
			LockPin:        "GPIO27",
			SensePull:      "up",
			SettleDelay:    Duration{500 * time.Millisecond},
			ServoPin:       "GPIO18",
			LockedAngle:    0,
			UnlockedAngle:  120,
			SimulatedDelay: Duration{100 * time.Millisecond},
		},
		Indicator: IndicatorConfig{
			Enabled:    true,
			SPIPort:    "/dev/spidev1.0",
			Pixels:     1,
			Brightness: 64,
			Flash:      Duration{600 * time.Millisecond},
		},
		Access: AccessConfig{Hold: Duration{5 * time.Second}, ChallengeSlot: 2},
		Sync: SyncConfig{
			Interval:       Duration{30 * time.Second},
			BatchSize:      32,
			QueueCapacity:  256,
			InitialBackoff: Duration{time.Second},
			MaxBackoff:     Duration{5 * time.Minute},
			RequestTimeout: Duration{10 * time.Second},
		},
		Store: StoreConfig{Watch: true},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. Unknown keys are an error so typos do not silently
// fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies LYNX_DEVICE_ID, LYNX_SYNC_URL and LYNX_LOG_LEVEL.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LYNX_DEVICE_ID"); v != "" {
		c.Device.ID = v
	}
	if v := os.Getenv("LYNX_SYNC_URL"); v != "" {
		c.Sync.URL = v
		c.Sync.Enabled = true
	}
	if v := os.Getenv("LYNX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	positive := func(field string, d Duration) {
		if d.Duration <= 0 {
			add(field, "must be positive, got %s", d)
		}
	}

	if c.Device.ID == "" {
		add("device.id", "must not be empty")
	}

	switch c.Reader.Transport {
	case TransportSPI, TransportI2C, TransportUART:
	default:
		add("reader.transport", "must be one of spi, i2c, uart, got %q", c.Reader.Transport)
	}
	if c.Reader.Port == "" && !c.Device.Simulate {
		add("reader.port", "must not be empty")
	}
	positive("reader.poll_interval", c.Reader.PollInterval)
	positive("reader.transaction_timeout", c.Reader.TransactionTimeout)
	if c.Reader.Debounce.Duration < 0 {
		add("reader.debounce", "must not be negative")
	}
	if c.Reader.MaxFailures < 1 {
		add("reader.max_failures", "must be at least 1, got %d", c.Reader.MaxFailures)
	}
	if c.Reader.PassiveRetries < 0 || c.Reader.PassiveRetries > 0xFE {
		add("reader.passive_retries", "must be 0..254, got %d", c.Reader.PassiveRetries)
	}

	switch c.Actuator.Kind {
	case ActuatorGPIO:
		if c.Actuator.UnlockPin == "" || c.Actuator.LockPin == "" {
			add("actuator", "gpio needs unlock_pin and lock_pin")
		}
		if c.Actuator.SensePin == "" {
			positive("actuator.settle_delay", c.Actuator.SettleDelay)
		}
		switch c.Actuator.SensePull {
		case "", "up", "down", "none":
		default:
			add("actuator.sense_pull", "must be up, down or none, got %q", c.Actuator.SensePull)
		}
	case ActuatorServo:
		if c.Actuator.ServoPin == "" {
			add("actuator.servo_pin", "must not be empty")
		}
		for field, a := range map[string]int{
			"actuator.locked_angle":   c.Actuator.LockedAngle,
			"actuator.unlocked_angle": c.Actuator.UnlockedAngle,
		} {
			if a < 0 || a > 180 {
				add(field, "must be 0..180, got %d", a)
			}
		}
	case ActuatorSimulated:
	default:
		add("actuator.kind", "must be one of gpio, servo, simulated, got %q", c.Actuator.Kind)
	}
	positive("actuator.timeout", c.Actuator.Timeout)

	if c.Indicator.Enabled {
		if c.Indicator.Pixels < 1 {
			add("indicator.pixels", "must be at least 1, got %d", c.Indicator.Pixels)
		}
		if c.Indicator.Brightness < 0 || c.Indicator.Brightness > 255 {
			add("indicator.brightness", "must be 0..255, got %d", c.Indicator.Brightness)
		}
	}

	positive("access.hold", c.Access.Hold)
	if c.Access.ChallengeSlot != 1 && c.Access.ChallengeSlot != 2 {
		add("access.challenge_slot", "must be 1 or 2, got %d", c.Access.ChallengeSlot)
	}

	if c.Sync.Enabled {
		if c.Sync.URL == "" {
			add("sync.url", "must be set when sync is enabled")
		}
		positive("sync.interval", c.Sync.Interval)
		positive("sync.initial_backoff", c.Sync.InitialBackoff)
		if c.Sync.MaxBackoff.Duration < c.Sync.InitialBackoff.Duration {
			add("sync.max_backoff", "must not be below initial_backoff")
		}
		if c.Sync.BatchSize < 1 {
			add("sync.batch_size", "must be at least 1, got %d", c.Sync.BatchSize)
		}
	}
	if c.Sync.QueueCapacity < 1 {
		add("sync.queue_capacity", "must be at least 1, got %d", c.Sync.QueueCapacity)
	}

	if c.Sync.Enabled && c.Store.CredentialsFile != "" {
		add("store.credentials_file", "cannot be used while sync is enabled")
	}
	if c.Store.Watch && c.Store.CredentialsFile == "" {
		c.Store.Watch = false
	}

	return errors.Join(errs...)
}

// Network is the wifi credential file consumed by the provisioning layer.
type Network struct {
	SSID     string `toml:"wifi_ssid"`
	Password string `toml:"wifi_password"`
}

// String hides the password.
func (n Network) String() string {
	return "ssid=" + strconv.Quote(n.SSID) + " password=" + strings.Repeat("*", min(len(n.Password), 8))
}

// LoadNetwork reads a network file.
func LoadNetwork(path string) (Network, error) {
	var n Network
	if _, err := toml.DecodeFile(path, &n); err != nil {
		return Network{}, fmt.Errorf("failed to decode network file %s: %w", path, err)
	}
	if n.SSID == "" {
		return Network{}, fmt.Errorf("network file %s: wifi_ssid is required", path)
	}
	return n, nil
}
