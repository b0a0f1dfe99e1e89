package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"costmanager/internal/log"
)

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.Rates())
	case http.MethodPut:
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "cannot read request body")
			return
		}
		// Bodies that are not JSON objects leave the table unchanged.
		s.svc.SetRatesJSON(raw)
		log.FromContext(r.Context()).InfoContext(r.Context(), "Rates replaced", log.FieldOperation, log.OpSetRates)
		writeJSON(w, http.StatusOK, s.svc.Rates())
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPut)
	}
}

// refreshRequest is the optional body of POST /rates/refresh. A URL that
// fetches successfully replaces the saved rates URL.
type refreshRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	var req refreshRequest
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Invalid refresh request body", log.FieldError, err)
			writeError(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}
	}

	if err := s.svc.RefreshRatesFrom(ctx, req.URL); err != nil {
		status := statusFor(err)
		log.LogError(ctx, "Rates refresh failed", err, log.OpRefreshRates, log.LogFields{"url": req.URL})
		writeError(w, status, publicMessage(status, err))
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Rates())
}
