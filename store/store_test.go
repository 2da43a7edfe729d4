package store

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/andreyvit/packbytes"
)

var userSchema = packbytes.Struct(
	packbytes.F("name", packbytes.String()),
	packbytes.F("age", packbytes.Bits(7)),
	packbytes.F("admin", packbytes.Bool()),
	packbytes.F("role", packbytes.String("guest", "member", "owner")),
)

func mustCodec(t testing.TB, schema *packbytes.Type) *packbytes.Codec {
	t.Helper()
	c, err := packbytes.New(schema, packbytes.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func user(name string, age int, role string) map[string]any {
	return map[string]any{"name": name, "age": age, "admin": role == "owner", "role": role}
}

func decodedUser(name string, age int, role string) map[string]any {
	return map[string]any{"name": name, "age": uint32(age), "admin": role == "owner", "role": role}
}

type storeOpener func(t *testing.T, codec *packbytes.Codec) *Store

func openers() map[string]storeOpener {
	return map[string]storeOpener{
		"memory": func(t *testing.T, codec *packbytes.Codec) *Store {
			s, err := OpenMemory(codec, Options{})
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		"bolt": func(t *testing.T, codec *packbytes.Codec) *Store {
			s, err := Open(filepath.Join(t.TempDir(), "test.db"), codec, Options{IsTesting: true})
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}
}

func TestStore_Basics(t *testing.T) {
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			s := open(t, mustCodec(t, userSchema))
			defer s.Close()

			must(t, s.Put("u:1", user("alice", 30, "owner")))
			must(t, s.Put("u:2", user("bob", 25, "member")))
			must(t, s.Put("x:1", user("eve", 99, "guest")))

			a, err := s.Get("u:2")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(decodedUser("bob", 25, "member"), a); diff != "" {
				t.Fatalf("Get(u:2) mismatch (-want +got):\n%s", diff)
			}

			if n, err := s.Len(); err != nil || n != 3 {
				t.Fatalf("Len = %d, %v, wanted 3", n, err)
			}

			must(t, s.Put("u:2", user("bob", 26, "member")))
			a, err = s.Get("u:2")
			if err != nil {
				t.Fatal(err)
			}
			if a.(map[string]any)["age"] != uint32(26) {
				t.Fatalf("Get(u:2) after overwrite = %v, wanted age 26", a)
			}

			must(t, s.Delete("u:2"))
			if _, err := s.Get("u:2"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(u:2) after Delete err = %v, wanted ErrNotFound", err)
			}
			if n, _ := s.Len(); n != 2 {
				t.Fatalf("Len after Delete = %d, wanted 2", n)
			}
		})
	}
}

func TestStore_Scan(t *testing.T) {
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			s := open(t, mustCodec(t, userSchema))
			defer s.Close()

			for _, k := range []string{"u:3", "a:1", "u:1", "u:2", "v:1"} {
				must(t, s.Put(k, user(k, 1, "guest")))
			}

			var keys []string
			err := s.Scan("u:", func(key string, value any) bool {
				if value.(map[string]any)["name"] != key {
					t.Fatalf("Scan: %s = %v", key, value)
				}
				keys = append(keys, key)
				return true
			})
			if err != nil {
				t.Fatal(err)
			}
			if a := strings.Join(keys, " "); a != "u:1 u:2 u:3" {
				t.Fatalf("Scan(u:) = %q, wanted %q", a, "u:1 u:2 u:3")
			}

			keys = nil
			must(t, s.Scan("", func(key string, value any) bool {
				keys = append(keys, key)
				return len(keys) < 2
			}))
			if a := strings.Join(keys, " "); a != "a:1 u:1" {
				t.Fatalf("Scan(\"\") with early stop = %q, wanted %q", a, "a:1 u:1")
			}
		})
	}
}

func TestStore_EncodeErrorWritesNothing(t *testing.T) {
	s, err := OpenMemory(mustCodec(t, userSchema), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = s.Put("bad", user("x", 200, "guest"))
	var re *packbytes.RangeError
	if !errors.As(err, &re) {
		t.Fatalf("Put err = %v, wanted *RangeError", err)
	}
	if n, _ := s.Len(); n != 0 {
		t.Fatalf("Len = %d, wanted 0", n)
	}
}

func TestStore_PutVariant(t *testing.T) {
	codec := mustCodec(t, packbytes.Union(
		packbytes.F("deleted", nil),
		packbytes.F("user", userSchema),
	))
	s, err := OpenMemory(codec, Options{Bucket: "events"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	must(t, s.PutVariant("e1", "user", user("alice", 30, "owner")))
	must(t, s.PutVariant("e2", "deleted", nil))

	a, err := s.Get("e1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(packbytes.Variant{Name: "user", Value: decodedUser("alice", 30, "owner")}, a); diff != "" {
		t.Fatalf("Get(e1) mismatch (-want +got):\n%s", diff)
	}
	a, err = s.Get("e2")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(packbytes.Variant{Name: "deleted"}, a); diff != "" {
		t.Fatalf("Get(e2) mismatch (-want +got):\n%s", diff)
	}

	var ue *packbytes.UnknownVariantError
	if err := s.PutVariant("e3", "renamed", nil); !errors.As(err, &ue) {
		t.Fatalf("PutVariant(renamed) err = %v, wanted *UnknownVariantError", err)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	codec := mustCodec(t, userSchema)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(path, codec, Options{IsTesting: true, Logger: logger, Verbose: true})
	if err != nil {
		t.Fatal(err)
	}
	must(t, s.Put("u:1", user("alice", 30, "owner")))
	must(t, s.Close())
	if !strings.Contains(logs.String(), "schema stored") || !strings.Contains(logs.String(), "put") {
		t.Fatalf("logs = %q, wanted schema stored and put events", logs.String())
	}

	// same declaration, independently built codec
	decl, err := packbytes.JSON.Marshal(userSchema)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := packbytes.ParseSchema(decl)
	if err != nil {
		t.Fatal(err)
	}
	s, err = Open(path, mustCodec(t, parsed), Options{IsTesting: true})
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Get("u:1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(decodedUser("alice", 30, "owner"), a); diff != "" {
		t.Fatalf("Get(u:1) after reopen mismatch (-want +got):\n%s", diff)
	}
	stored, err := s.Schema()
	if err != nil {
		t.Fatal(err)
	}
	if packbytes.Fingerprint(stored) != codec.Fingerprint() {
		t.Fatalf("stored schema fingerprint = %x, wanted %x", packbytes.Fingerprint(stored), codec.Fingerprint())
	}
	must(t, s.Close())

	other := mustCodec(t, packbytes.Struct(packbytes.F("name", packbytes.String())))
	_, err = Open(path, other, Options{IsTesting: true})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Open with another schema err = %v, wanted ErrSchemaMismatch", err)
	}

	// the failed open must release the file
	s, err = Open(path, codec, Options{IsTesting: true})
	if err != nil {
		t.Fatal(err)
	}
	must(t, s.Close())
}

func TestStore_ReservedBucket(t *testing.T) {
	_, err := OpenMemory(mustCodec(t, userSchema), Options{Bucket: metaBucket})
	if err == nil {
		t.Fatalf("OpenMemory with bucket %q succeeded", metaBucket)
	}
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
