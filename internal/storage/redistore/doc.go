// Package redistore provides shared storage for TokenGate on Redis.
//
// Each record is a hash under <prefix>tok:<token> with payload,
// modified_at and the rendered user id. Two index structures serve the
// bulk operations: a per-user set <prefix>usr:<user_id> and one sorted
// set <prefix>mod scored by modified_at. Every mutation runs as a Lua
// script so the record and its index entries move together, and so the
// renewal compare-and-set cannot interleave with a concurrent renewal.
//
// Records carry no Redis TTL. Expiry is decided by the manager from
// modified_at, and the sweeper removes what the manager would refuse.
package redistore
