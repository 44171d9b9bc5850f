package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     11155111,
		BlockNumber: 5200000,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		TxIndex:     3,
		LogIndex:    9,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestRowIDDeterministic(t *testing.T) {
	a := LogRecord{TxHash: "0xABCDEF", LogIndex: 4}
	b := LogRecord{TxHash: "0xabcdef", LogIndex: 4}

	if a.RowID() != b.RowID() {
		t.Fatalf("row id should ignore hash case: %s != %s", a.RowID(), b.RowID())
	}
	if a.RowID() != "0xabcdef-4" {
		t.Fatalf("unexpected row id: %s", a.RowID())
	}
	if RowID("0xabcdef", 5) == a.RowID() {
		t.Fatalf("log index must be part of the id")
	}
}

func TestLogRecordTopic0(t *testing.T) {
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("expected empty topic0, got %q", got)
	}
	if got := (LogRecord{Topics: []string{"0x01", "0x02"}}).Topic0(); got != "0x01" {
		t.Fatalf("unexpected topic0 %q", got)
	}
}
