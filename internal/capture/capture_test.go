package capture

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSessionAndFrameLifecycle(t *testing.T) {
	store := newTestStore(t)

	sessionID, err := store.StartSession("EcuFront", time.Now())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	frame := Frame{
		Timestamp:     time.Now(),
		Direction:     "outbound",
		PayloadType:   0x8001,
		SourceAddress: 0x0E00,
		TargetAddress: 0x0001,
		Data:          []byte{0x10, 0x01},
	}
	if err := store.InsertFrame(sessionID, frame); err != nil {
		t.Fatalf("InsertFrame: %v", err)
	}

	if err := store.EndSession(sessionID, time.Now()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	frames, err := store.FramesForSession(sessionID)
	if err != nil {
		t.Fatalf("FramesForSession: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Direction != "outbound" || frames[0].PayloadType != 0x8001 {
		t.Errorf("frame = %+v", frames[0])
	}
}

func TestRecorderStartStopIdempotence(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store, "EcuFront")

	if rec.IsRunning() {
		t.Fatal("new recorder should not be running")
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Start(); err == nil {
		t.Error("expected error starting an already-running recorder")
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := rec.Stop(); err == nil {
		t.Error("expected error stopping an already-stopped recorder")
	}
}

func TestRecorderRecordFrameRequiresRunningSession(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store, "EcuFront")

	if err := rec.RecordFrame("outbound", 0x8001, 0x0E00, 0x0001, []byte{0x10, 0x01}); err != nil {
		t.Fatalf("RecordFrame before Start should be a no-op, got error: %v", err)
	}

	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.RecordFrame("outbound", 0x8001, 0x0E00, 0x0001, []byte{0x10, 0x01}); err != nil {
		t.Fatalf("RecordFrame: %v", err)
	}

	frames, err := store.FramesForSession(rec.sessionID)
	if err != nil {
		t.Fatalf("FramesForSession: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}
