package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditCAInitialized    AuditEvent = "ca_initialized"
	AuditCertIssued       AuditEvent = "cert_issued"
	AuditCertRevoked      AuditEvent = "cert_revoked"
	AuditBundleDownloaded AuditEvent = "bundle_downloaded"
	AuditConfigSaved      AuditEvent = "config_saved"
	AuditServiceStarted   AuditEvent = "service_started"
	AuditServiceStopped   AuditEvent = "service_stopped"
	AuditServiceRestarted AuditEvent = "service_restarted"
	AuditAutostartChanged AuditEvent = "autostart_changed"
	AuditInstallRequested AuditEvent = "install_requested"
)

// auditLogger records every mutating operation with a stable event name and
// a unique event ID, so administrative actions are traceable.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{logger: logger}
}

func (l *auditLogger) log(r *http.Request, event AuditEvent, attrs ...any) {
	base := []any{
		"event", string(event),
		"event_id", uuid.NewString(),
		"remote", r.RemoteAddr,
	}
	l.logger.Info("audit", append(base, attrs...)...)
}
