package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/norlun/tokengate-go/internal/core/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(rdb, "", nil)
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return store, mr
}

func testRecord(tokenValue, userID string, modifiedAt int64) *domain.TokenRecord {
	return &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    json.RawMessage(fmt.Sprintf(`{"user_id":%q}`, userID)),
		ModifiedAt: modifiedAt,
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("tok_rd_insert", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != rec.Token {
		t.Fatalf("Token = %q, want %q", got.Token, rec.Token)
	}
	if got.ModifiedAt != 1000 {
		t.Fatalf("ModifiedAt = %d, want 1000", got.ModifiedAt)
	}
	if string(got.Payload) != string(rec.Payload) {
		t.Fatalf("Payload = %s, want %s", got.Payload, rec.Payload)
	}
}

func TestStore_InsertDuplicate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("tok_rd_dup", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert 1: %v", err)
	}
	if err := store.Insert(ctx, rec); err != domain.ErrDuplicateToken {
		t.Fatalf("Insert 2 err = %v, want %v", err, domain.ErrDuplicateToken)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nonexistent"); err != domain.ErrTokenNotFound {
		t.Fatalf("Get err = %v, want %v", err, domain.ErrTokenNotFound)
	}
}

func TestStore_PayloadBytesPreserved(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Whitespace and key order must come back untouched; the payload is
	// opaque bytes to the store.
	payload := `{"user_id": "u1",  "roles": ["b", "a"]}`
	rec := &domain.TokenRecord{
		Token:      "tok_rd_opaque",
		Payload:    json.RawMessage(payload),
		ModifiedAt: 1000,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Payload) != payload {
		t.Fatalf("Payload = %s, want %s", got.Payload, payload)
	}
}

func TestStore_CompareAndSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("tok_rd_cas", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	updated, err := store.CompareAndSetModifiedAt(ctx, rec.Token, 1000, 2000)
	if err != nil {
		t.Fatalf("CompareAndSetModifiedAt: %v", err)
	}
	if updated.ModifiedAt != 2000 {
		t.Fatalf("updated ModifiedAt = %d, want 2000", updated.ModifiedAt)
	}
	if string(updated.Payload) != string(rec.Payload) {
		t.Fatalf("updated Payload = %s, want %s", updated.Payload, rec.Payload)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt != 2000 {
		t.Fatalf("stored ModifiedAt = %d, want 2000", got.ModifiedAt)
	}
}

func TestStore_CompareAndSetStale(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("tok_rd_cas_stale", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := store.CompareAndSetModifiedAt(ctx, rec.Token, 999, 2000); err != domain.ErrStaleRecord {
		t.Fatalf("stale CAS err = %v, want %v", err, domain.ErrStaleRecord)
	}
	if _, err := store.CompareAndSetModifiedAt(ctx, "nonexistent", 1000, 2000); err != domain.ErrStaleRecord {
		t.Fatalf("missing CAS err = %v, want %v", err, domain.ErrStaleRecord)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt != 1000 {
		t.Fatalf("ModifiedAt changed on failed CAS: %d", got.ModifiedAt)
	}
}

func TestStore_Delete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("tok_rd_del", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	ok, err := store.Delete(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatal("Delete = false, want true")
	}
	if _, err := store.Get(ctx, rec.Token); err != domain.ErrTokenNotFound {
		t.Fatalf("Get after delete err = %v, want %v", err, domain.ErrTokenNotFound)
	}

	// Index entries are gone with the record.
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("leftover keys after delete: %v", keys)
	}

	ok, err = store.Delete(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Delete 2: %v", err)
	}
	if ok {
		t.Fatal("second Delete = true, want false")
	}
}

func TestStore_DeleteForUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("tok_rd_bulk_%d", i), "u1", 1000)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if err := store.Insert(ctx, testRecord("tok_rd_other", "u2", 1000)); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	removed, err := store.DeleteForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	if _, err := store.Get(ctx, "tok_rd_other"); err != nil {
		t.Fatalf("other user's token gone: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}

	removed, err = store.DeleteForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteForUser 2: %v", err)
	}
	if removed != 0 {
		t.Fatalf("second DeleteForUser removed = %d, want 0", removed)
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	old1 := testRecord("tok_rd_old1", "u1", 100)
	old2 := testRecord("tok_rd_old2", "u1", 200)
	edge := testRecord("tok_rd_edge", "u2", 500)
	fresh := testRecord("tok_rd_fresh", "u2", 900)
	for _, rec := range []*domain.TokenRecord{old1, old2, edge, fresh} {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %s: %v", rec.Token, err)
		}
	}

	removed, err := store.DeleteOlderThan(ctx, 500)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	// Strictly older-than: the boundary record survives.
	if _, err := store.Get(ctx, edge.Token); err != nil {
		t.Fatalf("boundary token swept: %v", err)
	}
	if _, err := store.Get(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh token swept: %v", err)
	}
	if _, err := store.Get(ctx, old1.Token); err != domain.ErrTokenNotFound {
		t.Fatalf("old token survived: %v", err)
	}
}

func TestStore_DeleteOlderThanSkipsRenewed(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("tok_rd_renewed", "u1", 100)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.CompareAndSetModifiedAt(ctx, rec.Token, 100, 600); err != nil {
		t.Fatalf("CompareAndSetModifiedAt: %v", err)
	}

	removed, err := store.DeleteOlderThan(ctx, 500)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := store.Get(ctx, rec.Token); err != nil {
		t.Fatalf("renewed token swept: %v", err)
	}
}

func TestStore_NoUserField(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := &domain.TokenRecord{
		Token:      "tok_rd_no_uid",
		Payload:    json.RawMessage(`{"role":"service"}`),
		ModifiedAt: 1000,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// No user set entry gets created for payloads without user_id.
	removed, err := store.DeleteForUser(ctx, "")
	if err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}

	ok, err := store.Delete(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatal("Delete = false, want true")
	}
}

func TestStore_Count(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}

	for i := 0; i < 4; i++ {
		rec := testRecord(fmt.Sprintf("tok_rd_count_%d", i), "u1", 1000)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	n, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("Count = %d, want 4", n)
	}
}

func TestStore_Scan(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	want := map[string]int64{
		"tok_rd_scan_a": 1000,
		"tok_rd_scan_b": 2000,
		"tok_rd_scan_c": 3000,
	}
	for tok, ts := range want {
		if err := store.Insert(ctx, testRecord(tok, "u1", ts)); err != nil {
			t.Fatalf("Insert %s: %v", tok, err)
		}
	}

	got := make(map[string]int64)
	err := store.Scan(ctx, func(rec *domain.TokenRecord) error {
		got[rec.Token] = rec.ModifiedAt
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("visited %d records, want %d", len(got), len(want))
	}
	for tok, ts := range want {
		if got[tok] != ts {
			t.Errorf("record %s modified_at = %d, want %d", tok, got[tok], ts)
		}
	}

	boom := errors.New("boom")
	err = store.Scan(ctx, func(*domain.TokenRecord) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Scan error = %v, want %v", err, boom)
	}
}

func TestStore_KeyPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewWithClient(rdb, "custom:", nil)
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("tok_rd_prefix", "u1", 1000)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for _, key := range mr.Keys() {
		if len(key) < 7 || key[:7] != "custom:" {
			t.Fatalf("key %q outside the configured prefix", key)
		}
	}
}
