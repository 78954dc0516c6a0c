// Package opsserver provides the operational HTTP listener for TokenGate.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/infra/buildinfo"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/pkg/token"
)

// storeProbeTimeout bounds the store calls behind /readyz and /statusz.
const storeProbeTimeout = 2 * time.Second

// probeToken is a well-formed value that no generator can issue, so a
// lookup exercises the backend without matching a real record.
var probeToken = strings.Repeat("0", token.EncodedLength)

// opsHandler serves the observability endpoints.
type opsHandler struct {
	store   storage.TokenStore
	backend string
	log     logger.Logger
	started time.Time
}

func newOpsHandler(store storage.TokenStore, backend string, log logger.Logger) *opsHandler {
	return &opsHandler{
		store:   store,
		backend: backend,
		log:     log,
		started: time.Now(),
	}
}

// handleHealthz reports process liveness.
func (h *opsHandler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadyz reports whether the token store answers. A lookup that
// returns the record or a not-found is healthy; anything else is a
// backend failure.
func (h *opsHandler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeProbeTimeout)
	defer cancel()

	_, err := h.store.Get(ctx, probeToken)
	if err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		h.log.Warn("readiness probe failed", "store", h.backend, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"store":  h.backend,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"store":  h.backend,
	})
}

// handleVersion reports build information.
func (h *opsHandler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

// handleStatusz reports an operational summary. The live token count
// is included when the backend supports counting.
func (h *opsHandler) handleStatusz(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":         "ok",
		"version":        buildinfo.Get().Version,
		"store":          h.backend,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if counter, ok := h.store.(storage.Counter); ok {
		ctx, cancel := context.WithTimeout(r.Context(), storeProbeTimeout)
		defer cancel()
		if n, err := counter.Count(ctx); err == nil {
			status["tokens"] = n
		} else {
			h.log.Warn("token count failed", "store", h.backend, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
