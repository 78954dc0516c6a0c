// Package opsserver provides the operational HTTP listener for TokenGate.
package opsserver

import (
	"net/http"

	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/internal/telemetry/metric"
)

// RouterConfig holds the dependencies of the operational endpoints.
type RouterConfig struct {
	// Store is probed by /readyz and counted by /statusz.
	Store storage.TokenStore

	// StoreBackend names the configured backend in probe responses.
	StoreBackend string

	// Metrics serves /metrics.
	Metrics *metric.Registry

	// Logger for request logging. Defaults to logger.Default().
	Logger logger.Logger

	// AllowFrom restricts clients to the listed IPs and CIDR blocks.
	// Empty means no restriction.
	AllowFrom []string
}

// NewRouter assembles the operational endpoints and their middleware.
//
// Order: Recover -> RequestID -> NetworkACL -> RequestLog -> mux.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	h := newOpsHandler(cfg.Store, cfg.StoreBackend, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)
	mux.HandleFunc("GET /version", h.handleVersion)
	mux.HandleFunc("GET /statusz", h.handleStatusz)
	mux.Handle("GET /metrics", cfg.Metrics.Handler())

	return Chain(mux,
		Recover(log),
		RequestID(),
		NetworkACL(cfg.AllowFrom, log),
		RequestLog(log),
	)
}
