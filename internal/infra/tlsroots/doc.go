// Package tlsroots provides TLS certificate management for TokenGate.
//
// Two concerns live here:
//
//   - Pool: trusted root management for outbound TLS. The Postgres
//     and Redis stores use it to verify servers signed by private CAs.
//   - Watcher: a rotating server certificate for the operational
//     HTTP listener, reloaded from disk on change.
package tlsroots
