package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"costmanager/internal/core"
	"costmanager/internal/log"
)

// costRequest is the body of POST /costs. Sum may be a JSON number or a
// numeric string. Any id, Date or timestamp in the body is ignored.
type costRequest struct {
	Sum         json.RawMessage `json:"sum"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

func (c costRequest) input() (core.CostInput, error) {
	in := core.CostInput{
		Currency:    c.Currency,
		Category:    c.Category,
		Description: c.Description,
	}

	raw := bytes.TrimSpace(c.Sum)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return core.CostInput{}, fmt.Errorf("%w: %w", core.ErrInvalidInput, core.ErrInvalidSum)
		}
		in.Sum = json.Number(s)
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		in.Sum = json.Number(raw)
	default:
		return core.CostInput{}, fmt.Errorf("%w: %w", core.ErrInvalidInput, core.ErrInvalidSum)
	}

	return in, nil
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var req costRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "Invalid cost request body", log.FieldError, err)
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec, err := s.svc.AddCost(ctx, in)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			log.LogError(ctx, "Failed to save cost", err, log.OpCreate, nil)
		} else if !errors.Is(err, core.ErrInvalidInput) {
			logger.WarnContext(ctx, "Cost rejected", log.FieldError, err)
		}
		writeError(w, status, publicMessage(status, err))
		return
	}

	logger.InfoContext(ctx, "Cost created", log.NewFields().WithCost(rec).WithOperation(log.OpCreate).ToSlice()...)
	writeJSON(w, http.StatusCreated, rec)
}
