package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/pkg/token"
)

// RecordCounts defines the store sizes for full benchmark runs.
var RecordCounts = []int{5000, 10000, 50000, 100000, 500000}

// SmallRecordCounts keeps CI runs short.
var SmallRecordCounts = []int{1000, 5000, 10000}

// benchSecret signs generated tokens in benchmarks.
var benchSecret = []byte("benchmark-secret")

// newGenerator returns a token generator with the benchmark secret.
func newGenerator() *token.Generator {
	return token.NewGenerator(benchSecret)
}

// makeRecord builds a token record carrying a user payload. The token
// value only needs to be unique; stores do not parse it.
func makeRecord(i int, modifiedAt int64) *domain.TokenRecord {
	return &domain.TokenRecord{
		Token:      fmt.Sprintf("bench-token-%08d", i),
		Payload:    []byte(fmt.Sprintf(`{"user_id":"user-%d"}`, i%1000)),
		ModifiedAt: modifiedAt,
	}
}

// prefillStore inserts count fresh records and returns their token
// values in insertion order.
func prefillStore(b *testing.B, store storage.TokenStore, count int) []string {
	b.Helper()
	ctx := context.Background()
	now := time.Now().Unix()

	tokens := make([]string, count)
	for i := 0; i < count; i++ {
		rec := makeRecord(i, now)
		if err := store.Insert(ctx, rec); err != nil {
			b.Fatalf("prefill insert %d: %v", i, err)
		}
		tokens[i] = rec.Token
	}
	return tokens
}

// reportMemory attaches heap metrics to a benchmark result.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithRecordCounts runs a benchmark function once per store size.
func runWithRecordCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("records_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}

// sizeLabel returns a human-readable size label.
func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
