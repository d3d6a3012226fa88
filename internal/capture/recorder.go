package capture

import (
	"fmt"
	"sync"
	"time"
)

// Recorder layers a start/stop capture session on top of a Store,
// implementing conversation.FrameRecorder so a conversation can be wired
// to it without internal/conversation importing this package.
type Recorder struct {
	store            *Store
	conversationName string

	mu        sync.Mutex
	sessionID int64
	running   bool
}

// NewRecorder builds a Recorder backed by store for the named conversation.
func NewRecorder(store *Store, conversationName string) *Recorder {
	return &Recorder{store: store, conversationName: conversationName}
}

// Start opens a new capture session. Calling Start while already running
// returns an error rather than silently starting a second session.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("capture: recorder for %q already running", r.conversationName)
	}
	id, err := r.store.StartSession(r.conversationName, time.Now())
	if err != nil {
		return err
	}
	r.sessionID = id
	r.running = true
	return nil
}

// Stop ends the current capture session.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return fmt.Errorf("capture: recorder for %q not running", r.conversationName)
	}
	r.running = false
	return r.store.EndSession(r.sessionID, time.Now())
}

// IsRunning reports whether a capture session is currently open.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RecordFrame implements conversation.FrameRecorder: it is a no-op when no
// session is running, so wiring a Recorder into a Conversation before
// Start is harmless.
func (r *Recorder) RecordFrame(direction string, payloadType uint16, source, target uint16, data []byte) error {
	r.mu.Lock()
	running := r.running
	sessionID := r.sessionID
	r.mu.Unlock()
	if !running {
		return nil
	}
	return r.store.InsertFrame(sessionID, Frame{
		Timestamp:     time.Now(),
		Direction:     direction,
		PayloadType:   payloadType,
		SourceAddress: source,
		TargetAddress: target,
		Data:          append([]byte(nil), data...),
	})
}
