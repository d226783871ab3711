package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glscript.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
  timezone: "Europe/London"
  location:
    latitude: 51.5
    longitude: -0.12
scripts:
  folder: "/srv/scripts"
  watch: false
  debounce_ms: 250
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  topic_prefix: "home"
  broker:
    host: "localhost"
    port: 1883
api:
  enabled: true
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  admin:
    username: "root"
    password_hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Scripts.Folder != "/srv/scripts" || cfg.Scripts.Watch {
		t.Errorf("Scripts = %+v", cfg.Scripts)
	}
	if got := cfg.Debounce(); got != 250*time.Millisecond {
		t.Errorf("Debounce() = %v, want 250ms", got)
	}
	if cfg.MQTT.TopicPrefix != "home" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "home")
	}
	if cfg.Security.Admin.Username != "root" {
		t.Errorf("Security.Admin.Username = %q, want %q", cfg.Security.Admin.Username, "root")
	}
	if got := cfg.Location().String(); got != "Europe/London" {
		t.Errorf("Location() = %q, want Europe/London", got)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Scripts.Folder != "./scripts" {
		t.Errorf("Scripts.Folder = %q, want default", cfg.Scripts.Folder)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/glscript.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.API.Enabled = true
		cfg.Security.JWT.Secret = validJWTSecret
		cfg.Security.Admin.PasswordHash = "hash"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "unknown timezone", mutate: func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "latitude out of range", mutate: func(c *Config) { c.Site.Location.Latitude = 91 }, wantErr: true},
		{name: "missing script folder", mutate: func(c *Config) { c.Scripts.Folder = "" }, wantErr: true},
		{name: "negative debounce", mutate: func(c *Config) { c.Scripts.DebounceMS = -1 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "database disabled without path", mutate: func(c *Config) {
			c.Database.Enabled = false
			c.Database.Path = ""
		}},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "mqtt without prefix", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.TopicPrefix = ""
		}, wantErr: true},
		{name: "influxdb without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "missing admin hash", mutate: func(c *Config) { c.Security.Admin.PasswordHash = "" }, wantErr: true},
		{name: "api disabled skips security", mutate: func(c *Config) {
			c.API.Enabled = false
			c.Security.JWT.Secret = ""
			c.Security.Admin.PasswordHash = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 15}},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
	if got := cfg.AccessTokenTTL(); got != 15*time.Minute {
		t.Errorf("AccessTokenTTL() = %v, want 15m", got)
	}
}

func TestConfig_LocationFallback(t *testing.T) {
	cfg := &Config{}
	if got := cfg.Location(); got != time.UTC {
		t.Errorf("Location() = %v, want UTC", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GLSCRIPT_SCRIPTS_FOLDER", "/custom/scripts")
	t.Setenv("GLSCRIPT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GLSCRIPT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GLSCRIPT_MQTT_PORT", "8883")
	t.Setenv("GLSCRIPT_MQTT_USERNAME", "testuser")
	t.Setenv("GLSCRIPT_MQTT_PASSWORD", "testpass")
	t.Setenv("GLSCRIPT_API_HOST", "192.168.1.1")
	t.Setenv("GLSCRIPT_API_PORT", "not-a-number")
	t.Setenv("GLSCRIPT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GLSCRIPT_LOG_LEVEL", "debug")
	t.Setenv("GLSCRIPT_JWT_SECRET", "jwt-secret")
	t.Setenv("GLSCRIPT_ADMIN_PASSWORD_HASH", "hash")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Scripts.Folder", cfg.Scripts.Folder, "/custom/scripts"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"Security.Admin.PasswordHash", cfg.Security.Admin.PasswordHash, "hash"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want unparsable value ignored", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Site.ID == "" {
		t.Error("default config should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Enabled || cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("network surfaces should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}
