//go:build !sqlite

package storage

import "testing"

func TestNewStoreSQLiteUnavailable(t *testing.T) {
	if _, err := NewStore(KindSQLite, "evonet.db"); err == nil {
		t.Fatal("expected sqlite unavailable error")
	}
	if DefaultStoreKind() != KindMemory {
		t.Fatalf("unexpected default store kind: %s", DefaultStoreKind())
	}
}
