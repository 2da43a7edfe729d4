package store

import "errors"

var (
	errBucketNotFound = errors.New("bucket not found")
	errReadOnly       = errors.New("read-only transaction")
	errClosed         = errors.New("storage is closed")
)

// storage is the key-value backend of a Store: Bolt on disk, or memory.
type storage interface {
	// View runs f in a read-only transaction.
	View(f func(tx storageTx) error) error

	// Update runs f in a read-write transaction, committing if f returns nil
	// and discarding every change otherwise.
	Update(f func(tx storageTx) error) error

	Close() error
}

// storageTx reads and writes sorted buckets by name. Reads of a missing
// bucket find nothing; writes to it fail with errBucketNotFound.
type storageTx interface {
	EnsureBucket(name string) error

	// Get returns nil if the key is absent. The result is only valid until
	// the end of the transaction.
	Get(bucket string, key []byte) []byte

	Put(bucket string, key, value []byte) error

	Delete(bucket string, key []byte) error

	// Scan calls f for each key starting with prefix, in key order, until f
	// returns false or an error.
	Scan(bucket string, prefix []byte, f func(key, value []byte) (bool, error)) error

	Count(bucket string) int
}
