package daemon

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Portal.APSSID != "Greenhouse-Setup" {
		t.Errorf("Portal.APSSID = %q, want %q", cfg.Portal.APSSID, "Greenhouse-Setup")
	}
	if cfg.Portal.ListenAddr != "192.168.4.1:80" {
		t.Errorf("Portal.ListenAddr = %q, want %q", cfg.Portal.ListenAddr, "192.168.4.1:80")
	}
	if cfg.Portal.APPassword != "password123" {
		t.Errorf("Portal.APPassword = %q, want %q", cfg.Portal.APPassword, "password123")
	}
	if cfg.Time.NTPServers[0] == "" || cfg.Time.NTPServers[1] == "" {
		t.Errorf("Time.NTPServers = %v, want two configured servers", cfg.Time.NTPServers)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Portal.EnableMetrics {
		t.Error("Portal.EnableMetrics should default to false (opt-in)")
	}
	if !cfg.Portal.EnableStatus {
		t.Error("Portal.EnableStatus should default to true")
	}
}

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("GREENHOUSE_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestSaveThenLoadConfig_Roundtrips(t *testing.T) {
	t.Setenv("GREENHOUSE_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.MQTT.BrokerURL = "tls://broker.example.com:8883"
	cfg.Node.DeviceID = "GH-deadbeefcafebabe"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got != cfg {
		t.Errorf("LoadConfig() = %+v, want %+v", got, cfg)
	}
}
