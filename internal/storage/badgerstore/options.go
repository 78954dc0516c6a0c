package badgerstore

import (
	"time"

	"github.com/norlun/tokengate-go/internal/telemetry/logger"
)

// Options configures the Badger store.
type Options struct {
	// Dir is the database directory. Required.
	Dir string

	// SyncWrites forces an fsync on every commit. Slower, but a crash
	// cannot lose acknowledged writes.
	SyncWrites bool

	// CacheSize is the block cache size in bytes. Zero keeps Badger's
	// default.
	CacheSize int64

	// ValueLogFileSize caps individual value log files in bytes. Zero
	// keeps Badger's default.
	ValueLogFileSize int64

	// NumMemtables sets the number of in-memory tables. Zero keeps
	// Badger's default.
	NumMemtables int

	// GCInterval is the value log garbage collection period.
	GCInterval time.Duration

	// GCThreshold is the rewrite ratio passed to Badger's value log GC.
	GCThreshold float64

	// EncryptionKey enables at-rest encryption of record values when
	// non-empty. Must be adaptive.KeySize bytes.
	EncryptionKey []byte

	// Logger receives store and Badger-internal log output.
	Logger logger.Logger
}

// DefaultOptions returns production defaults for the given directory.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:         dir,
		SyncWrites:  true,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}
