package store_test

import (
	"testing"

	"github.com/atlas-desktop/strategy-kernel/internal/store"
)

func TestMemoryStoreRoundTripsPendingAndScheduled(t *testing.T) {
	ms := store.NewMemoryStore()
	key := store.Key{StrategyName: "momentum", Symbol: "SOLUSDT"}

	if err := ms.WritePending(key, sampleSignal("p1")); err != nil {
		t.Fatalf("WritePending failed: %v", err)
	}
	if err := ms.WriteScheduled(key, sampleSignal("s1")); err != nil {
		t.Fatalf("WriteScheduled failed: %v", err)
	}

	pending, err := ms.ReadPending(key)
	if err != nil || pending == nil || pending.ID != "p1" {
		t.Fatalf("expected p1, got %+v err=%v", pending, err)
	}
	scheduled, err := ms.ReadScheduled(key)
	if err != nil || scheduled == nil || scheduled.ID != "s1" {
		t.Fatalf("expected s1, got %+v err=%v", scheduled, err)
	}
}

func TestMemoryStoreReadMissingReturnsNilNotError(t *testing.T) {
	ms := store.NewMemoryStore()
	key := store.Key{StrategyName: "momentum", Symbol: "SOLUSDT"}

	sig, err := ms.ReadPending(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected nil for an unwritten key, got %+v", sig)
	}
}

func TestMemoryStoreWriteNilDeletesEntry(t *testing.T) {
	ms := store.NewMemoryStore()
	key := store.Key{StrategyName: "momentum", Symbol: "SOLUSDT"}

	if err := ms.WritePending(key, sampleSignal("p1")); err != nil {
		t.Fatalf("WritePending failed: %v", err)
	}
	if err := ms.WritePending(key, nil); err != nil {
		t.Fatalf("WritePending(nil) failed: %v", err)
	}
	sig, _ := ms.ReadPending(key)
	if sig != nil {
		t.Fatalf("expected nil after clearing, got %+v", sig)
	}
}

func TestMemoryStoreClearRemovesBothSlots(t *testing.T) {
	ms := store.NewMemoryStore()
	key := store.Key{StrategyName: "momentum", Symbol: "SOLUSDT"}

	if err := ms.WritePending(key, sampleSignal("p1")); err != nil {
		t.Fatalf("WritePending failed: %v", err)
	}
	if err := ms.WriteScheduled(key, sampleSignal("s1")); err != nil {
		t.Fatalf("WriteScheduled failed: %v", err)
	}
	if err := ms.Clear(key); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	pending, _ := ms.ReadPending(key)
	scheduled, _ := ms.ReadScheduled(key)
	if pending != nil || scheduled != nil {
		t.Fatalf("expected both slots cleared, got pending=%+v scheduled=%+v", pending, scheduled)
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	ms := store.NewMemoryStore()
	keyA := store.Key{StrategyName: "momentum", Symbol: "SOLUSDT"}
	keyB := store.Key{StrategyName: "momentum", Symbol: "ETHUSDT"}

	if err := ms.WritePending(keyA, sampleSignal("a")); err != nil {
		t.Fatalf("WritePending(A) failed: %v", err)
	}
	got, _ := ms.ReadPending(keyB)
	if got != nil {
		t.Fatalf("expected key B unaffected by key A's write, got %+v", got)
	}
}
