package postgres

import (
	"context"
	"testing"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestStateName(t *testing.T) {
	if got := StateName(11155111, "0xabc"); got != "history:11155111:0xabc" {
		t.Fatalf("unexpected state name %q", got)
	}
}

func TestNullableInt(t *testing.T) {
	if nullableInt(nil) != nil {
		t.Fatalf("nil timestamp must stay nil")
	}
	ts := uint64(42)
	if got := nullableInt(&ts); got == nil || *got != 42 {
		t.Fatalf("unexpected value %v", got)
	}
	if len(metaOrEmpty(nil)) != 0 || metaOrEmpty(nil) == nil {
		t.Fatalf("meta must default to an empty map")
	}
}
