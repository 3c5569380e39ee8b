// Package storagetest provides an in-memory Redis backed storage for tests.
package storagetest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/navid-fn/margincore/internal/storage"
)

// New starts an in-memory Redis and connects a RedisStorage to it.
// Both are closed when the test ends.
func New(t testing.TB) (*storage.RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := storage.NewRedisStorage(storage.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}
