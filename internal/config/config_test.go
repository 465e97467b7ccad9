package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"default log format is json", func(c *Config) bool { return c.LogFormat == "json" }},
		{"default free quota is 3", func(c *Config) bool { return c.FreeQuota == 3 }},
		{"default migrations dir", func(c *Config) bool { return c.MigrationsDir == "migrations" }},
		{"listen addr format", func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("check failed for %s", tt.name)
			}
		})
	}
}
