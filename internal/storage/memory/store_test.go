package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/norlun/tokengate-go/internal/core/domain"
)

func testRecord(tokenValue, userID string, modifiedAt int64) *domain.TokenRecord {
	payload := json.RawMessage(fmt.Sprintf(`{"user_id":%q,"role":"member"}`, userID))
	return &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    payload,
		ModifiedAt: modifiedAt,
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_insert_1", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != rec.Token {
		t.Fatalf("Get Token = %q, want %q", got.Token, rec.Token)
	}
	if got.ModifiedAt != 1000 {
		t.Fatalf("Get ModifiedAt = %d, want 1000", got.ModifiedAt)
	}
}

func TestStore_InsertDuplicate(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_dup", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert 1: %v", err)
	}
	if err := store.Insert(ctx, rec); err != domain.ErrDuplicateToken {
		t.Fatalf("Insert 2 err = %v, want %v", err, domain.ErrDuplicateToken)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Get(ctx, "nonexistent"); err != domain.ErrTokenNotFound {
		t.Fatalf("Get err = %v, want %v", err, domain.ErrTokenNotFound)
	}
}

func TestStore_GetReturnsOldRecords(t *testing.T) {
	store := New()
	ctx := context.Background()

	// A record with an ancient modified_at is still returned; the store
	// holds no expiry policy of its own.
	rec := testRecord("tok_ancient", "u1", 1)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt != 1 {
		t.Fatalf("ModifiedAt = %d, want 1", got.ModifiedAt)
	}
}

func TestStore_GetReturnsClone(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_clone", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.ModifiedAt = 9999
	got.Payload[0] = 'X'

	again, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if again.ModifiedAt != 1000 {
		t.Fatalf("stored ModifiedAt mutated: %d", again.ModifiedAt)
	}
	if again.Payload[0] == 'X' {
		t.Fatalf("stored Payload mutated through returned record")
	}
}

func TestStore_CompareAndSet(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_cas", "u1", 1000)
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

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt != 2000 {
		t.Fatalf("stored ModifiedAt = %d, want 2000", got.ModifiedAt)
	}
}

func TestStore_CompareAndSetStale(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_cas_stale", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := store.CompareAndSetModifiedAt(ctx, rec.Token, 999, 2000); err != domain.ErrStaleRecord {
		t.Fatalf("stale CAS err = %v, want %v", err, domain.ErrStaleRecord)
	}

	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt != 1000 {
		t.Fatalf("ModifiedAt changed on failed CAS: %d", got.ModifiedAt)
	}
}

func TestStore_CompareAndSetMissing(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CompareAndSetModifiedAt(ctx, "nonexistent", 1000, 2000); err != domain.ErrStaleRecord {
		t.Fatalf("CAS err = %v, want %v", err, domain.ErrStaleRecord)
	}
}

func TestStore_CompareAndSetSingleWinner(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_cas_race", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	const contenders = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			<-start
			if _, err := store.CompareAndSetModifiedAt(ctx, rec.Token, 1000, ts); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(2000 + int64(i))
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt < 2000 {
		t.Fatalf("ModifiedAt = %d, want a winner's timestamp", got.ModifiedAt)
	}
}

func TestStore_Delete(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_del", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	ok, err := store.Delete(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatalf("Delete = false, want true")
	}
	if _, err := store.Get(ctx, rec.Token); err != domain.ErrTokenNotFound {
		t.Fatalf("Get after delete err = %v, want %v", err, domain.ErrTokenNotFound)
	}

	ok, err = store.Delete(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Delete 2: %v", err)
	}
	if ok {
		t.Fatalf("second Delete = true, want false")
	}
}

func TestStore_DeleteCleansIndex(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_del_ix", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Delete(ctx, rec.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := store.users.Users(); n != 0 {
		t.Fatalf("indexed users = %d, want 0", n)
	}
}

func TestStore_DeleteForUser(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("tok_bulk_%d", i), "u1", 1000)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	other := testRecord("tok_bulk_other", "u2", 1000)
	if err := store.Insert(ctx, other); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	removed, err := store.DeleteForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	if _, err := store.Get(ctx, "tok_bulk_other"); err != nil {
		t.Fatalf("other user's token gone: %v", err)
	}

	removed, err = store.DeleteForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteForUser 2: %v", err)
	}
	if removed != 0 {
		t.Fatalf("second DeleteForUser removed = %d, want 0", removed)
	}
}

func TestStore_DeleteForUserNumericID(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := &domain.TokenRecord{
		Token:      "tok_numeric_uid",
		Payload:    json.RawMessage(`{"user_id":42}`),
		ModifiedAt: 1000,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Numeric IDs index under their literal JSON text.
	removed, err := store.DeleteForUser(ctx, "42")
	if err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestStore_DeleteForUserNoUserField(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := &domain.TokenRecord{
		Token:      "tok_no_uid",
		Payload:    json.RawMessage(`{"role":"service"}`),
		ModifiedAt: 1000,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := store.DeleteForUser(ctx, "")
	if err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := store.Get(ctx, rec.Token); err != nil {
		t.Fatalf("unindexed record deleted: %v", err)
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := New()
	ctx := context.Background()

	old1 := testRecord("tok_sweep_old1", "u1", 100)
	old2 := testRecord("tok_sweep_old2", "u1", 200)
	fresh := testRecord("tok_sweep_fresh", "u2", 900)
	for _, rec := range []*domain.TokenRecord{old1, old2, fresh} {
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

	if _, err := store.Get(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh token swept: %v", err)
	}
	if _, err := store.Get(ctx, old1.Token); err != domain.ErrTokenNotFound {
		t.Fatalf("old token survived: %v", err)
	}
}

func TestStore_DeleteOlderThanBoundary(t *testing.T) {
	store := New()
	ctx := context.Background()

	// modified_at equal to the cutoff survives; removal is strictly
	// older-than.
	rec := testRecord("tok_sweep_edge", "u1", 500)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := store.DeleteOlderThan(ctx, 500)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := store.Get(ctx, rec.Token); err != nil {
		t.Fatalf("boundary token swept: %v", err)
	}
}

func TestStore_DeleteOlderThanSkipsRenewed(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_sweep_renewed", "u1", 100)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Renew past the cutoff, then sweep. The versioned delete must not
	// remove the renewed record.
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
}

func TestStore_Count(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		rec := testRecord(fmt.Sprintf("tok_count_%d", i), "u1", 1000)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("Count = %d, want 4", n)
	}
}

func TestStore_Scan(t *testing.T) {
	store := New()
	ctx := context.Background()

	want := map[string]int64{
		"tok_scan_a": 1000,
		"tok_scan_b": 2000,
		"tok_scan_c": 3000,
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
}

func TestStore_ScanStopsOnError(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("tok_scan_err_%d", i), "u1", 1000)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	boom := errors.New("boom")
	visited := 0
	err := store.Scan(ctx, func(*domain.TokenRecord) error {
		visited++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Scan error = %v, want %v", err, boom)
	}
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
}

func TestStore_InsertDoesNotAliasCaller(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := testRecord("tok_alias", "u1", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rec.ModifiedAt = 9999
	got, err := store.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ModifiedAt != 1000 {
		t.Fatalf("stored record aliases caller's: ModifiedAt = %d", got.ModifiedAt)
	}
}
