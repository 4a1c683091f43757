// Package daemon wires the greenhouse node's tasks and infrastructure into
// a single running process and owns its static (TOML) configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds everything that is not runtime-tunable through the broker.
// The mutable setpoint table lives in infra/store instead, since it is
// mutated by command dispatch at runtime.
type Config struct {
	Node   NodeConfig   `toml:"node"`
	MQTT   MQTTConfig   `toml:"mqtt"`
	Time   TimeConfig   `toml:"time"`
	Portal PortalConfig `toml:"portal"`
	Paths  PathsConfig  `toml:"paths"`
	Log    LogConfig    `toml:"log"`
}

// NodeConfig identifies this device.
type NodeConfig struct {
	// DeviceID overrides the derived/persisted device ID (infra/identity)
	// when set; left empty in practice outside of test fixtures.
	DeviceID string `toml:"device_id"`
}

// MQTTConfig controls the broker connection.
type MQTTConfig struct {
	BrokerURL  string `toml:"broker_url"`
	CACertPath string `toml:"ca_cert_path"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
}

// TimeConfig names the NTP servers queried to correct the wall clock
// before TLS certificate validation can be trusted.
type TimeConfig struct {
	NTPServers [2]string `toml:"ntp_servers"`
}

// PortalConfig controls the provisioning access point and its HTTP form.
type PortalConfig struct {
	APSSID     string `toml:"ap_ssid"`
	APPassword string `toml:"ap_password"`
	ListenAddr string `toml:"listen_addr"`

	// EnableStatus/EnableMetrics gate the optional debug endpoints, an
	// opt-in shape mirroring Prometheus metrics being off by default.
	EnableStatus  bool `toml:"enable_status"`
	EnableMetrics bool `toml:"enable_metrics"`
}

// PathsConfig controls on-disk layout.
type PathsConfig struct {
	DataDir string `toml:"data_dir"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level string `toml:"level"` // panic, fatal, error, warn, info, debug, trace
}

// DefaultConfig returns the factory defaults.
func DefaultConfig() Config {
	home := greenhouseHome()
	return Config{
		Node: NodeConfig{},
		MQTT: MQTTConfig{
			BrokerURL:  "tls://localhost:8883",
			CACertPath: filepath.Join(home, "ca.pem"),
		},
		Time: TimeConfig{
			NTPServers: [2]string{"pool.ntp.org:123", "time.google.com:123"},
		},
		Portal: PortalConfig{
			APSSID:        "Greenhouse-Setup",
			APPassword:    "password123",
			ListenAddr:    "192.168.4.1:80",
			EnableStatus:  true,
			EnableMetrics: false,
		},
		Paths: PathsConfig{
			DataDir: home,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads config from $GREENHOUSE_HOME/config.toml, falling back
// to defaults when the file does not exist.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(greenhouseHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to $GREENHOUSE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(greenhouseHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// greenhouseHome returns the node's data directory.
func greenhouseHome() string {
	if env := os.Getenv("GREENHOUSE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".greenhouse")
}

// GreenhouseHome is exported for use by other packages (cli).
func GreenhouseHome() string {
	return greenhouseHome()
}
