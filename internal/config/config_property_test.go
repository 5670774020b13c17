//go:build property
// +build property

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validTally() TallyConfig {
	config := Default()
	return config.Tally
}

// TestTallyConfigProperties checks the validation rules for the tracker section.
func TestTallyConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("whole-second positive ttls are accepted", prop.ForAll(
		func(seconds int64) bool {
			config := validTally()
			config.TTL = time.Duration(seconds) * time.Second
			return validateTallyConfig(&config) == nil
		},
		gen.Int64Range(1, 10*365*24*3600),
	))

	properties.Property("sub-second remainders are rejected", prop.ForAll(
		func(seconds int64, millis int64) bool {
			config := validTally()
			config.TTL = time.Duration(seconds)*time.Second + time.Duration(millis)*time.Millisecond
			return validateTallyConfig(&config) != nil
		},
		gen.Int64Range(0, 3600),
		gen.Int64Range(1, 999),
	))

	properties.Property("non-positive ttls are rejected", prop.ForAll(
		func(seconds int64) bool {
			config := validTally()
			config.TTL = time.Duration(seconds) * time.Second
			return validateTallyConfig(&config) != nil
		},
		gen.Int64Range(-3600, 0),
	))

	properties.Property("alphanumeric extensions are accepted with or without a dot", prop.ForAll(
		func(ext string, dotted bool) bool {
			if dotted {
				ext = "." + ext
			}
			config := validTally()
			config.Extensions = []string{ext}
			return validateTallyConfig(&config) == nil
		},
		gen.Identifier(),
		gen.Bool(),
	))

	properties.Property("extensions with glob or path characters are rejected", prop.ForAll(
		func(ext string, special string) bool {
			config := validTally()
			config.Extensions = []string{ext + special}
			return validateTallyConfig(&config) != nil
		},
		gen.Identifier(),
		gen.OneConstOf("/", `\`, "{", "}", ",", "*", "?", "[", "]"),
	))

	properties.Property("blank key prefixes are rejected", prop.ForAll(
		func(n int) bool {
			config := validTally()
			config.KeyPrefix = strings.Repeat(" ", n)
			return validateTallyConfig(&config) != nil
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

// TestServerConfigProperties checks port and views directory validation.
func TestServerConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports are accepted exactly within 0-65535", prop.ForAll(
		func(port int) bool {
			config := Default().Server
			config.Port = port
			valid := port >= 0 && port <= 65535
			return (validateServerConfig(&config) == nil) == valid
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("views directories escaping the root are rejected", prop.ForAll(
		func(dir string) bool {
			config := Default().Server
			config.ViewsDir = "../" + dir
			return validateServerConfig(&config) != nil
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
