package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fbs/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return configPath
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("FBS_TEST_DB_PATH", "/tmp/fbs-test.sqlite")

	configPath := writeConfig(t, `
database:
  driver: sqlite
  path: "${FBS_TEST_DB_PATH}"
  tx_timeout: 2s
auth:
  session_ttl: 1h
  users:
    - id: u1
      username: alice
      email: alice@campus.edu
      password_hash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
catalog:
  facilities:
    - id: LAB-1
      name: "Robotics Lab"
      building: "Engineering Hall"
      capacity: 16
    - id: LAB-2
      name: "Closed Lab"
      capacity: 4
      inactive: true
`)

	// .env is optional; none exists in the package directory
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "/tmp/fbs-test.sqlite" {
		t.Errorf("expected env-expanded path, got %s", cfg.Database.Path)
	}
	if cfg.Database.TxTimeout != 2*time.Second {
		t.Errorf("expected tx_timeout 2s, got %s", cfg.Database.TxTimeout)
	}
	if cfg.Auth.SessionTTL != time.Hour {
		t.Errorf("expected session_ttl 1h, got %s", cfg.Auth.SessionTTL)
	}
	if len(cfg.Auth.Users) != 1 || cfg.Auth.Users[0].Username != "alice" {
		t.Fatalf("expected user alice, got %+v", cfg.Auth.Users)
	}
	if cfg.Auth.Users[0].PasswordHash != "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" {
		t.Errorf("bcrypt hash was altered by env expansion: %s", cfg.Auth.Users[0].PasswordHash)
	}

	facilities := cfg.Catalog.ToFacilities()
	if len(facilities) != 2 {
		t.Fatalf("expected 2 facilities, got %d", len(facilities))
	}
	if !facilities[0].Active || facilities[1].Active {
		t.Errorf("unexpected active flags: %+v", facilities)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfig(t, "database: [not a map")
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}

	invalid := writeConfig(t, "database:\n  driver: oracle\n")
	if _, err := Load(invalid); err == nil {
		t.Error("expected validation error for unknown driver")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FBS_TEST_HOST", "db.local")

	got := expandEnv("url: postgres://${FBS_TEST_HOST}/fbs hash: $2a$10$x $HOME")
	want := "url: postgres://db.local/fbs hash: $2a$10$x $HOME"
	if got != want {
		t.Errorf("expandEnv() = %q, want %q", got, want)
	}
}

func validConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "memory driver", mutate: func(c *Config) { c.Database.Driver = DriverMemory }, wantErr: false},
		{name: "postgres without url", mutate: func(c *Config) { c.Database.Driver = DriverPostgres }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "business end before start", mutate: func(c *Config) { c.Booking.BusinessEnd = "07:00" }, wantErr: true},
		{name: "bad business start", mutate: func(c *Config) { c.Booking.BusinessStart = "8am" }, wantErr: true},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true }, wantErr: true},
		{name: "sheets without spreadsheet", mutate: func(c *Config) { c.Sheets.Enabled = true }, wantErr: true},
		{name: "telegram without managers", mutate: func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, BotToken: "t"} }, wantErr: true},
		{
			name: "duplicate username",
			mutate: func(c *Config) {
				c.Auth.Users = []models.User{
					{Username: "a", PasswordHash: "h"},
					{Username: "a", PasswordHash: "h"},
				}
			},
			wantErr: true,
		},
		{
			name: "duplicate facility",
			mutate: func(c *Config) {
				c.Catalog.Facilities = []FacilityConfig{{ID: "A", Capacity: 1}, {ID: "A", Capacity: 2}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Database.TxTimeout != 5*time.Second {
		t.Errorf("expected default tx timeout 5s, got %s", cfg.Database.TxTimeout)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.Booking.BusinessStart != models.DefaultBusinessStart || cfg.Booking.BusinessEnd != models.DefaultBusinessEnd {
		t.Errorf("unexpected business hours %s-%s", cfg.Booking.BusinessStart, cfg.Booking.BusinessEnd)
	}
	if cfg.Booking.GlimpseLimit != models.DefaultGlimpseLimit {
		t.Errorf("expected default glimpse limit %d, got %d", models.DefaultGlimpseLimit, cfg.Booking.GlimpseLimit)
	}
	if cfg.Sheets.SheetName != "Bookings" {
		t.Errorf("expected default sheet name Bookings, got %s", cfg.Sheets.SheetName)
	}
	if cfg.Auth.LockoutAttempts != 5 {
		t.Errorf("expected default lockout attempts 5, got %d", cfg.Auth.LockoutAttempts)
	}
}

func TestValidateFacilities(t *testing.T) {
	tests := []struct {
		name       string
		facilities []FacilityConfig
		wantErr    bool
	}{
		{
			name:       "Valid facilities",
			facilities: []FacilityConfig{{ID: "A", Capacity: 1}, {ID: "B", Capacity: 10}},
			wantErr:    false,
		},
		{
			name:       "Duplicate ID",
			facilities: []FacilityConfig{{ID: "A", Capacity: 1}, {ID: "A", Capacity: 1}},
			wantErr:    true,
		},
		{
			name:       "Empty ID",
			facilities: []FacilityConfig{{Name: "Nameless", Capacity: 1}},
			wantErr:    true,
		},
		{
			name:       "Zero capacity",
			facilities: []FacilityConfig{{ID: "A"}},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFacilities(tt.facilities)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFacilities() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
