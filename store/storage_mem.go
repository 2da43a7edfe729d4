package store

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// memStorage keeps committed buckets as immutable snapshots. Readers share
// the current snapshot; a writer copies a bucket the first time it changes
// it and publishes the new bucket set on commit.
type memStorage struct {
	writeMu sync.Mutex // held for the whole of Update

	mu      sync.Mutex
	buckets map[string]*memBucket // never modified once published
	closed  bool
}

// memBucket holds items sorted by key.
type memBucket struct {
	items []memItem
}

type memItem struct {
	key, value []byte
}

func newMemStorage() storage {
	return &memStorage{buckets: make(map[string]*memBucket)}
}

func (s *memStorage) snapshot() (map[string]*memBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return s.buckets, nil
}

func (s *memStorage) View(f func(tx storageTx) error) error {
	buckets, err := s.snapshot()
	if err != nil {
		return err
	}
	return f(&memTx{committed: buckets})
}

func (s *memStorage) Update(f func(tx storageTx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	buckets, err := s.snapshot()
	if err != nil {
		return err
	}
	tx := &memTx{committed: buckets, dirty: make(map[string]*memBucket)}
	if err := f(tx); err != nil {
		return err
	}
	if len(tx.dirty) == 0 {
		return nil
	}

	next := maps.Clone(buckets)
	maps.Copy(next, tx.dirty)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.buckets = next
	return nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}

type memTx struct {
	committed map[string]*memBucket
	dirty     map[string]*memBucket // private copies; nil for read-only
}

func (tx *memTx) bucket(name string) *memBucket {
	if b := tx.dirty[name]; b != nil {
		return b
	}
	return tx.committed[name]
}

// writableBucket returns the transaction's private copy of a bucket.
func (tx *memTx) writableBucket(name string) (*memBucket, error) {
	if tx.dirty == nil {
		return nil, errReadOnly
	}
	if b := tx.dirty[name]; b != nil {
		return b, nil
	}
	b := tx.committed[name]
	if b == nil {
		return nil, fmt.Errorf("%w: %s", errBucketNotFound, name)
	}
	b = &memBucket{items: slices.Clone(b.items)}
	tx.dirty[name] = b
	return b, nil
}

func (tx *memTx) EnsureBucket(name string) error {
	if tx.dirty == nil {
		return errReadOnly
	}
	if tx.bucket(name) == nil {
		tx.dirty[name] = &memBucket{}
	}
	return nil
}

func (tx *memTx) Get(bucket string, key []byte) []byte {
	b := tx.bucket(bucket)
	if b == nil {
		return nil
	}
	if i, found := b.find(key); found {
		return b.items[i].value
	}
	return nil
}

func (tx *memTx) Put(bucket string, key, value []byte) error {
	b, err := tx.writableBucket(bucket)
	if err != nil {
		return err
	}
	item := memItem{bytes.Clone(key), bytes.Clone(value)}
	if i, found := b.find(key); found {
		b.items[i] = item
	} else {
		b.items = slices.Insert(b.items, i, item)
	}
	return nil
}

func (tx *memTx) Delete(bucket string, key []byte) error {
	b, err := tx.writableBucket(bucket)
	if err != nil {
		return err
	}
	if i, found := b.find(key); found {
		b.items = slices.Delete(b.items, i, i+1)
	}
	return nil
}

func (tx *memTx) Scan(bucket string, prefix []byte, f func(key, value []byte) (bool, error)) error {
	b := tx.bucket(bucket)
	if b == nil {
		return nil
	}
	i, _ := b.find(prefix)
	for ; i < len(b.items) && bytes.HasPrefix(b.items[i].key, prefix); i++ {
		ok, err := f(b.items[i].key, b.items[i].value)
		if err != nil || !ok {
			return err
		}
	}
	return nil
}

func (tx *memTx) Count(bucket string) int {
	if b := tx.bucket(bucket); b != nil {
		return len(b.items)
	}
	return 0
}

func (b *memBucket) find(key []byte) (int, bool) {
	return slices.BinarySearchFunc(b.items, key, func(item memItem, k []byte) int {
		return bytes.Compare(item.key, k)
	})
}
