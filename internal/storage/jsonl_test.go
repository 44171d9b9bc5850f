package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"landScope/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "logs.jsonl")
	store := NewJsonlStorage(path)

	first := []model.LogRecord{{TxHash: "0xabc", LogIndex: 1, BlockNumber: 10}}
	second := []model.LogRecord{{TxHash: "0xabc", LogIndex: 2, BlockNumber: 11}}
	if err := store.PutLogBatch(first); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := store.PutLogBatch(second); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := store.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		ids = append(ids, record.RowID())
	}
	if len(ids) != 2 || ids[0] != "0xabc-1" || ids[1] != "0xabc-2" {
		t.Fatalf("unexpected records: %v", ids)
	}
}

func TestJsonlStorageLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	store := NewJsonlStorage(path)
	if err := store.PutLogBatch([]model.LogRecord{{TxHash: "0x1", LogIndex: 3}}); err != nil {
		t.Fatalf("put logs: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var record model.LogRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record.RowID() != "0x1-3" {
		t.Fatalf("unexpected record: %+v", record)
	}
}
