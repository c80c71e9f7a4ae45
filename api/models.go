package api

import (
	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/supervise"
)

// ErrorResponse is the structured failure payload; Kind names the error
// taxonomy entry so the front-end can branch without parsing messages.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ServiceResponse reports a supervisor transition or query.
type ServiceResponse struct {
	supervise.Handle
	Message string `json:"message,omitempty"`
}

// AutostartRequest toggles boot-time activation.
type AutostartRequest struct {
	Enabled bool `json:"enabled"`
}

// IssueRequest names the client a certificate is issued for.
type IssueRequest struct {
	Name string `json:"name"`
}

// ConfigResponse carries the stored service settings.
type ConfigResponse struct {
	Settings config.Settings `json:"settings"`
}

// InstallRequest selects the server version for the delegated installer.
type InstallRequest struct {
	Version string `json:"version"`
}

// InstallResponse carries the installer's combined output.
type InstallResponse struct {
	Output string `json:"output"`
}

// LogsResponse carries the tail of the daemon log.
type LogsResponse struct {
	Lines []string `json:"lines"`
}
