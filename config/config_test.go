package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rgoodwin/muxgate/config"
)

func TestDefaults(t *testing.T) {
	s := config.Defaults()
	assert.False(t, s.Service)
	assert.Equal(t, "0.0.0.0", s.ListenAddress)
	assert.Equal(t, 60021, s.ListenPort)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "latest", s.Version)
	assert.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	valid := config.Settings{
		ListenAddress: "192.0.2.1",
		ListenPort:    8080,
		LogLevel:      "debug",
		Version:       "20240203-110809-5046fc22",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Settings)
		field  string
	}{
		{"hostname address", func(s *config.Settings) { s.ListenAddress = "example.com" }, "listen_address"},
		{"empty address", func(s *config.Settings) { s.ListenAddress = "" }, "listen_address"},
		{"port zero", func(s *config.Settings) { s.ListenPort = 0 }, "listen_port"},
		{"port too high", func(s *config.Settings) { s.ListenPort = 99999 }, "listen_port"},
		{"unknown level", func(s *config.Settings) { s.LogLevel = "verbose" }, "log_level"},
		{"version with space", func(s *config.Settings) { s.Version = "v 1" }, "version"},
		{"empty version", func(s *config.Settings) { s.Version = "" }, "version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			var verr *config.ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_IPv6Address(t *testing.T) {
	s := config.Defaults()
	s.ListenAddress = "::1"
	assert.NoError(t, s.Validate())
}

func TestGenerateLua(t *testing.T) {
	s := config.Settings{
		ListenAddress: "0.0.0.0",
		ListenPort:    8080,
		LogLevel:      "debug",
		Version:       "latest",
	}
	lua := string(config.GenerateLua(s, "/etc/muxgate/certs"))

	assert.Contains(t, lua, `bind_address = "0.0.0.0:8080"`)
	assert.Contains(t, lua, `config.log_level = "debug"`)
	assert.Contains(t, lua, `pem_private_key = "/etc/muxgate/certs/server.key"`)
	assert.Contains(t, lua, `pem_cert = "/etc/muxgate/certs/server.crt"`)
	assert.Contains(t, lua, `pem_ca = "/etc/muxgate/certs/ca.crt"`)
	assert.Contains(t, lua, "return config")
	assert.NotContains(t, lua, "ca.key")
}
