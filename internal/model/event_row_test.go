package model

import "testing"

func TestEventRowBefore(t *testing.T) {
	newer := EventRow{BlockNumber: 10, LogIndex: 0}
	older := EventRow{BlockNumber: 9, LogIndex: 50}
	if !newer.Before(older) || older.Before(newer) {
		t.Fatalf("higher block must sort first")
	}

	high := EventRow{BlockNumber: 10, LogIndex: 3}
	low := EventRow{BlockNumber: 10, LogIndex: 1}
	if !high.Before(low) || low.Before(high) {
		t.Fatalf("higher log index must sort first within a block")
	}
}

func TestEventRowInvolves(t *testing.T) {
	row := EventRow{
		From: "0xAbC0000000000000000000000000000000000001",
		To:   CounterpartyMarket,
	}
	if !row.Involves("0xabc0000000000000000000000000000000000001") {
		t.Fatalf("expected case-insensitive match on from")
	}
	if row.Involves("") {
		t.Fatalf("empty account must not match")
	}
	if row.Involves("0x0000000000000000000000000000000000000002") {
		t.Fatalf("unexpected match")
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, typ := range EventTypes {
		if !typ.Valid() {
			t.Fatalf("%s should be valid", typ)
		}
	}
	if EventType("SWAP").Valid() {
		t.Fatalf("unknown type reported valid")
	}
}
