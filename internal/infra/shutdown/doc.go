// Package shutdown provides graceful shutdown for TokenGate.
//
// This package handles process termination and reload signals:
//
//   - Signal handling (SIGINT, SIGTERM, SIGHUP)
//   - Timeout-based forced shutdown
//   - Cleanup callback registration in reverse startup order
//   - Programmatic shutdown via Trigger
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return server.Shutdown(ctx) })
//	h.OnShutdown(func(ctx context.Context) error { return store.Close() })
//	return h.Wait()
package shutdown
