package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/pki"
	"github.com/rgoodwin/muxgate/storage"
	"github.com/rgoodwin/muxgate/supervise"
)

// Error taxonomy kinds surfaced to the front-end.
const (
	KindInvalidInput       = "InvalidInput"
	KindNotInitialized     = "NotInitialized"
	KindAlreadyInitialized = "AlreadyInitialized"
	KindAlreadyExists      = "AlreadyExists"
	KindNotFound           = "NotFound"
	KindCryptoFailure      = "CryptoFailure"
	KindBinaryMissing      = "BinaryMissing"
	KindStartFailed        = "StartFailed"
	KindStopFailed         = "StopFailed"
	KindValidationFailed   = "ValidationFailed"
	KindInternal           = "Internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

func mapError(w http.ResponseWriter, err error) {
	var verr *config.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, KindValidationFailed, verr.Error())
	case errors.Is(err, pki.ErrInvalidName):
		writeError(w, http.StatusBadRequest, KindInvalidInput, err.Error())
	case errors.Is(err, pki.ErrNotInitialized):
		writeError(w, http.StatusConflict, KindNotInitialized, err.Error())
	case errors.Is(err, pki.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, KindAlreadyInitialized, err.Error())
	case errors.Is(err, pki.ErrAlreadyExists):
		writeError(w, http.StatusConflict, KindAlreadyExists, err.Error())
	case errors.Is(err, pki.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, pki.ErrCryptoFailure):
		writeError(w, http.StatusInternalServerError, KindCryptoFailure, err.Error())
	case errors.Is(err, supervise.ErrBinaryMissing):
		writeError(w, http.StatusServiceUnavailable, KindBinaryMissing, err.Error())
	case errors.Is(err, supervise.ErrStartFailed):
		writeError(w, http.StatusInternalServerError, KindStartFailed, err.Error())
	case errors.Is(err, supervise.ErrStopFailed):
		writeError(w, http.StatusInternalServerError, KindStopFailed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, KindInternal, err.Error())
	}
}
