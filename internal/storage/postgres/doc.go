// Package postgres provides shared durable storage for TokenGate on
// PostgreSQL.
//
// Records live in a single table keyed by token value with the payload
// as jsonb. The renewal compare-and-set is one conditional UPDATE with
// a RETURNING clause, so the check and the write cannot interleave with
// a concurrent renewal. Bulk revocation filters on payload->>'user_id',
// which is also the rendering the rest of the system uses for user IDs.
package postgres
