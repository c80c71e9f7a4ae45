package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rgoodwin/muxgate/internal/tailer"
	"github.com/rgoodwin/muxgate/pki"
)

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	h, err := a.sup.Start(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditServiceStarted, "pid", h.PID)
	writeJSON(w, http.StatusOK, ServiceResponse{Handle: h, Message: "server running"})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := a.sup.Stop(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditServiceStopped)
	writeJSON(w, http.StatusOK, ServiceResponse{Message: "server stopped"})
}

func (a *API) handleRestart(w http.ResponseWriter, r *http.Request) {
	h, err := a.sup.Restart(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditServiceRestarted, "pid", h.PID)
	writeJSON(w, http.StatusOK, ServiceResponse{Handle: h, Message: "server restarted"})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceResponse{Handle: a.sup.Status()})
}

func (a *API) handleAutostart(w http.ResponseWriter, r *http.Request) {
	var req AutostartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidInput, "invalid request body")
		return
	}
	if err := a.sup.SetAutostart(r.Context(), req.Enabled); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditAutostartChanged, "enabled", req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (a *API) handleInitCA(w http.ResponseWriter, r *http.Request) {
	if err := a.authority.InitCA(r.Context(), pki.DetectHost()); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditCAInitialized)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "certificate authority initialized"})
}

func (a *API) handleCACert(w http.ResponseWriter, r *http.Request) {
	pem, err := a.authority.CACertificatePEM(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Write(pem)
}

func (a *API) handleListCerts(w http.ResponseWriter, r *http.Request) {
	records, err := a.authority.ListCertificates(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if records == nil {
		records = []pki.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleIssueCert(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidInput, "invalid request body")
		return
	}
	record, err := a.authority.IssueClientCertificate(r.Context(), req.Name)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditCertIssued, "name", record.Name, "serial", record.Serial)
	writeJSON(w, http.StatusCreated, record)
}

func (a *API) handleCertDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := a.authority.GetCertificateDetail(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleRevokeCert(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.authority.RevokeClientCertificate(r.Context(), name); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditCertRevoked, "name", name)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("certificate %s revoked", name)})
}

func (a *API) handleBundle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	// Stage the archive before responding so failures still produce a JSON
	// error instead of a truncated download.
	path, err := a.packager.BuildFile(name)
	if err != nil {
		mapError(w, err)
		return
	}
	defer os.Remove(path)
	a.audit.log(r, AuditBundleDownloaded, "name", name)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"-bundle.zip"))
	http.ServeFile(w, r, path)
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{Settings: a.cfg.Read()})
}

func (a *API) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidInput, "invalid request body")
		return
	}
	if err := a.cfg.Save(r.Context(), req.Settings); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(r, AuditConfigSaved,
		"address", req.Settings.ListenAddress,
		"port", req.Settings.ListenPort,
		"log_level", req.Settings.LogLevel)
	writeJSON(w, http.StatusOK, ConfigResponse{Settings: a.cfg.Read()})
}

func (a *API) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidInput, "invalid request body")
		return
	}
	a.audit.log(r, AuditInstallRequested, "version", req.Version)
	out, err := a.installer.Install(r.Context(), req.Version)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InstallResponse{Output: out})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10000 {
			writeError(w, http.StatusBadRequest, KindInvalidInput, "lines must be an integer in 1-10000")
			return
		}
		lines = n
	}
	tail, err := tailer.Tail(a.logPath, lines)
	if err != nil {
		mapError(w, err)
		return
	}
	if tail == nil {
		tail = []string{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Lines: tail})
}
