// Package store keeps packed records in a key-value storage (Bolt, or memory
// for tests).
//
// The store remembers the declaration of the schema it was created with and
// refuses to open with a codec whose schema fingerprint differs, since
// packed records carry no type information of their own.
//
// Buckets:
//
//   - meta: "schema" = msgpack declaration, "fingerprint" = uint64 big-endian
//   - records (or Options.Bucket): key = caller's key, value = packed record
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/packbytes"
)

var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrNotFound       = errors.New("record not found")
)

const (
	metaBucket    = "meta"
	DefaultBucket = "records"
)

var (
	schemaKey      = []byte("schema")
	fingerprintKey = []byte("fingerprint")
)

type Options struct {
	Bucket    string
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
}

type Store struct {
	st      storage
	codec   *packbytes.Codec
	bucket  string
	logger  *slog.Logger
	verbose bool
}

// Open opens or creates a Bolt-backed store at path.
func Open(path string, codec *packbytes.Codec, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("packstore: %w", err)
	}
	return open(newBoltStorage(bdb), codec, opt)
}

// OpenMemory returns a transient store.
func OpenMemory(codec *packbytes.Codec, opt Options) (*Store, error) {
	return open(newMemStorage(), codec, opt)
}

func open(st storage, codec *packbytes.Codec, opt Options) (*Store, error) {
	s := &Store{
		st:      st,
		codec:   codec,
		bucket:  opt.Bucket,
		logger:  opt.Logger,
		verbose: opt.Verbose,
	}
	if s.bucket == "" {
		s.bucket = DefaultBucket
	}
	if s.bucket == metaBucket {
		st.Close()
		return nil, fmt.Errorf("packstore: bucket name %q is reserved", metaBucket)
	}

	err := st.Update(func(tx storageTx) error {
		if err := tx.EnsureBucket(metaBucket); err != nil {
			return err
		}
		if err := tx.EnsureBucket(s.bucket); err != nil {
			return err
		}

		var fp [8]byte
		binary.BigEndian.PutUint64(fp[:], codec.Fingerprint())
		if old := tx.Get(metaBucket, fingerprintKey); old != nil {
			if !bytes.Equal(old, fp[:]) {
				return fmt.Errorf("%w: store has %x, codec has %x", ErrSchemaMismatch, old, fp)
			}
			return nil
		}

		decl, err := packbytes.MsgPack.Marshal(codec.Schema())
		if err != nil {
			return err
		}
		if err := tx.Put(metaBucket, schemaKey, decl); err != nil {
			return err
		}
		if err := tx.Put(metaBucket, fingerprintKey, fp[:]); err != nil {
			return err
		}
		s.log("packstore: schema stored", "fingerprint", fmt.Sprintf("%x", fp), "decl_size", len(decl))
		return nil
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("packstore: open: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) Codec() *packbytes.Codec {
	return s.codec
}

// Put encodes value and stores it under key.
func (s *Store) Put(key string, value any) error {
	data, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("packstore: %s: %w", key, err)
	}
	err = s.st.Update(func(tx storageTx) error {
		return tx.Put(s.bucket, []byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("packstore: %s: %w", key, err)
	}
	if s.verbose {
		s.log("packstore: put", "key", key, "size", len(data))
	}
	return nil
}

// PutVariant stores a value of a union-rooted schema.
func (s *Store) PutVariant(key string, name string, payload any) error {
	return s.Put(key, packbytes.Variant{Name: name, Value: payload})
}

// Get returns the decoded record stored under key, or ErrNotFound.
func (s *Store) Get(key string) (any, error) {
	var v any
	err := s.st.View(func(tx storageTx) error {
		raw := tx.Get(s.bucket, []byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		v, err = s.codec.Decode(raw)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("packstore: %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Delete(key string) error {
	err := s.st.Update(func(tx storageTx) error {
		return tx.Delete(s.bucket, []byte(key))
	})
	if err != nil {
		return fmt.Errorf("packstore: %s: %w", key, err)
	}
	if s.verbose {
		s.log("packstore: delete", "key", key)
	}
	return nil
}

// Scan calls f for each record whose key starts with prefix, in key order,
// until f returns false.
func (s *Store) Scan(prefix string, f func(key string, value any) bool) error {
	return s.st.View(func(tx storageTx) error {
		return tx.Scan(s.bucket, []byte(prefix), func(k, raw []byte) (bool, error) {
			v, err := s.codec.Decode(raw)
			if err != nil {
				return false, fmt.Errorf("packstore: %s: %w", k, err)
			}
			return f(string(k), v), nil
		})
	})
}

func (s *Store) Len() (int, error) {
	var n int
	err := s.st.View(func(tx storageTx) error {
		n = tx.Count(s.bucket)
		return nil
	})
	return n, err
}

// Schema returns the declaration the store was created with.
func (s *Store) Schema() (*packbytes.Type, error) {
	var t *packbytes.Type
	err := s.st.View(func(tx storageTx) error {
		raw := tx.Get(metaBucket, schemaKey)
		if raw == nil {
			return ErrNotFound
		}
		var err error
		t, err = packbytes.MsgPack.Unmarshal(raw)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("packstore: schema: %w", err)
	}
	return t, nil
}

func (s *Store) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
