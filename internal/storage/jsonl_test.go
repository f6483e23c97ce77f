package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vaultScope/internal/model"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var row map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		out = append(out, row)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJsonlStoragePutEventsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	store := NewJsonlStorage(path)

	events := []model.VaultEvent{
		{ChainID: 43114, BlockNumber: 10, TxHash: "0xaa", LogIndex: 1, EventName: model.EventDeposited,
			Decoded: model.DepositedEventData{User: "0xc1", AmountX: "1", AmountY: "2", Shares: "3"}},
		{ChainID: 43114, BlockNumber: 11, TxHash: "0xbb", LogIndex: 0, EventName: model.EventWithdrawalQueued,
			Decoded: model.WithdrawalQueuedEventData{User: "0xc1", Round: 2, Shares: "3"}},
	}
	if err := store.PutEvents(context.Background(), events[:1]); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.PutEvents(context.Background(), events[1:]); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := store.PutEvents(context.Background(), nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	rows := readLines(t, path)
	if len(rows) != 2 {
		t.Fatalf("got %d lines, want 2", len(rows))
	}
	if rows[0]["event_name"] != model.EventDeposited || rows[1]["tx_hash"] != "0xbb" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	decoded, ok := rows[1]["decoded"].(map[string]interface{})
	if !ok || decoded["round"] != float64(2) {
		t.Fatalf("decoded payload: %v", rows[1]["decoded"])
	}
}

func TestJsonlStorageAppendRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	store := NewJsonlStorage(path)
	roi := "12.5"
	if err := store.Append(model.SnapshotRecord{Vault: "0xa1", TVLUSD: "100", ROI: &roi}, map[string]string{"kind": "plan"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows := readLines(t, path)
	if len(rows) != 2 {
		t.Fatalf("got %d lines, want 2", len(rows))
	}
	if rows[0]["roi"] != "12.5" || rows[1]["kind"] != "plan" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	if err := NewJsonlStorage("").Append(1); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := store.Append(make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

type failingSink struct{ err error }

func (f failingSink) PutEvents(context.Context, []model.VaultEvent) error { return f.err }

func TestMultiSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	boom := errors.New("boom")
	sink := MultiSink{NewJsonlStorage(path), nil, failingSink{err: boom}}

	err := sink.PutEvents(context.Background(), []model.VaultEvent{{TxHash: "0x01"}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if rows := readLines(t, path); len(rows) != 1 {
		t.Fatalf("jsonl sink got %d rows, want 1", len(rows))
	}
	if err := (MultiSink{}).PutEvents(context.Background(), nil); err != nil {
		t.Fatalf("empty multisink: %v", err)
	}
}
