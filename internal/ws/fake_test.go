package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeHandle records the frames written to it and whether it was closed. A
// broken handle fails every write, standing in for a dead connection.
type fakeHandle struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	broken bool
}

func (f *fakeHandle) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken || f.closed {
		return errors.New("write on dead connection")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHandle) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeHandle) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// decodedFrame is the generic outbound frame shape used in assertions.
type decodedFrame struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fakeHandle) decodedFrames(t *testing.T) []decodedFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]decodedFrame, 0, len(f.frames))
	for _, raw := range f.frames {
		var frame decodedFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("failed to decode frame %q: %v", raw, err)
		}
		out = append(out, frame)
	}
	return out
}

// framesOfType filters the recorded frames by type discriminator.
func (f *fakeHandle) framesOfType(t *testing.T, frameType string) []decodedFrame {
	t.Helper()
	var out []decodedFrame
	for _, frame := range f.decodedFrames(t) {
		if frame.Type == frameType {
			out = append(out, frame)
		}
	}
	return out
}
