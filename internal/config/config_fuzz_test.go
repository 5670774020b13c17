package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// FuzzLoadConfig loads arbitrary YAML and checks that whatever Load accepts
// is usable.
func FuzzLoadConfig(f *testing.F) {
	f.Add(`tally:
  root: .
  ttl: 336h
store:
  driver: redis
  redis:
    addr: localhost:6379`)

	f.Add(`tally:
  ttl: "soon"`)

	f.Add(`tally:
  ttl: 1500ms`)

	f.Add(`tally:
  extensions: ["html.erb", "*"]`)

	f.Add(`server:
  port: 65536`)

	f.Add(`server:
  views_dir: ../../etc`)

	f.Add(`store:
  driver: memcached`)

	f.Add(`malformed: yaml: content`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, yamlContent string) {
		if len(yamlContent) > 50000 {
			t.Skip("Config content too large")
		}

		viper.Reset()
		defer viper.Reset()

		configFile := filepath.Join(t.TempDir(), ".tally.yml")
		if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
			t.Skip("Could not write config file")
		}

		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return
		}

		cfg, err := Load()
		if err != nil {
			return
		}

		if cfg.Tally.TTL <= 0 || cfg.Tally.TTL%time.Second != 0 {
			t.Errorf("accepted ttl %s", cfg.Tally.TTL)
		}
		if cfg.Tally.KeyPrefix == "" {
			t.Error("accepted empty key prefix")
		}
		if len(cfg.Tally.Extensions) == 0 {
			t.Error("accepted empty extension list")
		}
		if cfg.Store.Driver != DriverRedis && cfg.Store.Driver != DriverMemory {
			t.Errorf("accepted store driver %q", cfg.Store.Driver)
		}
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			t.Errorf("accepted port %d", cfg.Server.Port)
		}
		if _, err := cfg.Tally.ParsedCategories(); err != nil {
			t.Errorf("accepted categories that do not parse: %v", err)
		}
	})
}
