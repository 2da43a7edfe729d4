package store

import (
	"bytes"
	"fmt"
	"unsafe"

	"go.etcd.io/bbolt"
)

type boltStorage struct {
	bdb *bbolt.DB
}

func newBoltStorage(bdb *bbolt.DB) storage {
	return &boltStorage{bdb: bdb}
}

func (s *boltStorage) View(f func(tx storageTx) error) error {
	return s.bdb.View(func(btx *bbolt.Tx) error {
		return f(boltTx{btx})
	})
}

func (s *boltStorage) Update(f func(tx storageTx) error) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return f(boltTx{btx})
	})
}

func (s *boltStorage) Close() error {
	return s.bdb.Close()
}

type boltTx struct {
	btx *bbolt.Tx
}

func (tx boltTx) bucket(name string) *bbolt.Bucket {
	return tx.btx.Bucket(unsafeBytesFromString(name))
}

func (tx boltTx) writableBucket(name string) (*bbolt.Bucket, error) {
	b := tx.bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", errBucketNotFound, name)
	}
	return b, nil
}

func (tx boltTx) EnsureBucket(name string) error {
	_, err := tx.btx.CreateBucketIfNotExists([]byte(name))
	return err
}

func (tx boltTx) Get(bucket string, key []byte) []byte {
	if b := tx.bucket(bucket); b != nil {
		return b.Get(key)
	}
	return nil
}

func (tx boltTx) Put(bucket string, key, value []byte) error {
	b, err := tx.writableBucket(bucket)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func (tx boltTx) Delete(bucket string, key []byte) error {
	b, err := tx.writableBucket(bucket)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

func (tx boltTx) Scan(bucket string, prefix []byte, f func(key, value []byte) (bool, error)) error {
	b := tx.bucket(bucket)
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		ok, err := f(k, v)
		if err != nil || !ok {
			return err
		}
	}
	return nil
}

func (tx boltTx) Count(bucket string) int {
	if b := tx.bucket(bucket); b != nil {
		return b.Stats().KeyN
	}
	return 0
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
