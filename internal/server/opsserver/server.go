// Package opsserver provides the operational HTTP listener for TokenGate.
package opsserver

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/norlun/tokengate-go/internal/infra/tlsroots"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
)

// Options configures the operational listener.
type Options struct {
	// Addr is the listen address, for example "127.0.0.1:9464".
	Addr string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set. The
	// pair is watched on disk and reloaded when it rotates.
	TLSCertFile string
	TLSKeyFile  string

	// Logger for lifecycle messages. Defaults to logger.Default().
	Logger logger.Logger
}

// Server is the operational HTTP server.
type Server struct {
	httpServer *http.Server
	certWatch  *tlsroots.Watcher
	log        logger.Logger
}

// New creates the operational server. When a certificate pair is
// configured, both files must exist and parse at construction.
func New(opts Options, handler http.Handler) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}

	if opts.TLSCertFile != "" && opts.TLSKeyFile != "" {
		watch, err := tlsroots.NewWatcher(opts.TLSCertFile, opts.TLSKeyFile, tlsroots.WithLogger(log))
		if err != nil {
			return nil, err
		}
		s.certWatch = watch
		s.httpServer.TLSConfig = &tls.Config{
			GetCertificate: watch.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}
	}

	return s, nil
}

// TLSEnabled reports whether the listener terminates TLS.
func (s *Server) TLSEnabled() bool {
	return s.certWatch != nil
}

// ListenAndServe binds the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. Like net/http, it
// returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.certWatch != nil {
		s.certWatch.StartAsync()
		return s.httpServer.ServeTLS(ln, "", "")
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and stops the certificate
// watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.certWatch != nil {
		s.certWatch.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
