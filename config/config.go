// Package config persists the user-chosen service settings and regenerates
// the mux server's derived configuration file from them. The settings file is
// line-oriented KEY="VALUE" (the format the installer and front-end already
// read); the derived file is the Lua configuration the server binary is
// launched with and is never hand-edited.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Recognized log verbosity levels, lowest to highest.
var LogLevels = []string{"error", "warn", "info", "debug", "trace"}

var versionRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Settings is the persisted service configuration.
type Settings struct {
	// Service mirrors the boot-time autostart flag (SERVICE=enable|disable).
	Service bool `json:"service"`
	// ListenAddress is an IPv4/IPv6 literal; 0.0.0.0 binds all interfaces.
	ListenAddress string `json:"listen_address"`
	ListenPort    int    `json:"listen_port"`
	LogLevel      string `json:"log_level"`
	// Version selects the desired server release for the installer.
	Version string `json:"version"`
}

// Defaults returns the documented default settings, used for any field that
// is missing or unreadable.
func Defaults() Settings {
	return Settings{
		Service:       false,
		ListenAddress: "0.0.0.0",
		ListenPort:    60021,
		LogLevel:      "info",
		Version:       "latest",
	}
}

// ValidationError names the offending field of a rejected save.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks every field; the first failing field is reported and
// nothing is persisted by the caller.
func (s Settings) Validate() error {
	if net.ParseIP(s.ListenAddress) == nil {
		return &ValidationError{Field: "listen_address", Reason: fmt.Sprintf("%q is not an IP address literal", s.ListenAddress)}
	}
	if s.ListenPort < 1 || s.ListenPort > 65535 {
		return &ValidationError{Field: "listen_port", Reason: fmt.Sprintf("%d is outside 1-65535", s.ListenPort)}
	}
	if !validLogLevel(s.LogLevel) {
		return &ValidationError{Field: "log_level", Reason: fmt.Sprintf("%q is not one of %s", s.LogLevel, strings.Join(LogLevels, ", "))}
	}
	if !versionRE.MatchString(s.Version) {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("%q is not a release selector", s.Version)}
	}
	return nil
}

func validLogLevel(level string) bool {
	for _, l := range LogLevels {
		if level == l {
			return true
		}
	}
	return false
}

// parse decodes KEY="VALUE" lines into Settings, applying defaults for any
// missing or malformed field. It never fails: a corrupt file degrades to
// defaults field by field.
func parse(data []byte) Settings {
	s := Defaults()
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch key {
		case "SERVICE":
			s.Service = value == "enable"
		case "LISTEN_ADDRESS":
			if net.ParseIP(value) != nil {
				s.ListenAddress = value
			}
		case "LISTEN_PORT":
			if port, err := strconv.Atoi(value); err == nil && port >= 1 && port <= 65535 {
				s.ListenPort = port
			}
		case "LOG_LEVEL":
			if validLogLevel(value) {
				s.LogLevel = value
			}
		case "VERSION":
			if versionRE.MatchString(value) {
				s.Version = value
			}
		}
	}
	return s
}

// encode renders Settings in the KEY="VALUE" file format.
func (s Settings) encode() []byte {
	service := "disable"
	if s.Service {
		service = "enable"
	}
	var b strings.Builder
	b.WriteString("# Managed by muxgate; edit through the admin interface.\n")
	fmt.Fprintf(&b, "SERVICE=%q\n", service)
	fmt.Fprintf(&b, "LISTEN_ADDRESS=%q\n", s.ListenAddress)
	fmt.Fprintf(&b, "LISTEN_PORT=%q\n", strconv.Itoa(s.ListenPort))
	fmt.Fprintf(&b, "LOG_LEVEL=%q\n", s.LogLevel)
	fmt.Fprintf(&b, "VERSION=%q\n", s.Version)
	return []byte(b.String())
}
