package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voicebridge/speech-relay/internal/translate"
)

// capturedEvent is one broadcast observed by the fake emitter
type capturedEvent struct {
	Name    string
	Payload any
}

// fakeEmitter records broadcasts; consume goroutines emit concurrently so it
// is mutex-guarded.
type fakeEmitter struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakeEmitter) Emit(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{Name: event, Payload: payload})
}

func (f *fakeEmitter) captured() []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeEmitter) count(event string) int {
	n := 0
	for _, e := range f.captured() {
		if e.Name == event {
			n++
		}
	}
	return n
}

func (f *fakeEmitter) find(t *testing.T, event string) capturedEvent {
	t.Helper()
	for _, e := range f.captured() {
		if e.Name == event {
			return e
		}
	}
	t.Fatalf("Event %q not emitted; got %+v", event, f.captured())
	return capturedEvent{}
}

// fakeSynth is a scriptable synthesizer
type fakeSynth struct {
	mu    sync.Mutex
	audio []byte
	err   error
	calls []string // synthesized texts, in order
}

func (f *fakeSynth) Synthesize(_ context.Context, text, _, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeStream is a provider stream the test pushes results into. keepOpen
// simulates a stream that is still draining after Stop was requested.
type fakeStream struct {
	results  chan *translate.Result
	onStop   func()
	keepOpen bool
	stopOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{results: make(chan *translate.Result, 16)}
}

func (f *fakeStream) Results() <-chan *translate.Result { return f.results }

func (f *fakeStream) Stop() {
	f.stopOnce.Do(func() {
		if f.onStop != nil {
			f.onStop()
		}
		if !f.keepOpen {
			close(f.results)
		}
	})
}

func (f *fakeStream) push(r *translate.Result) { f.results <- r }

// fakeRecognizer records the order of provider operations and hands out
// scripted streams and one-shot results.
type fakeRecognizer struct {
	mu      sync.Mutex
	ops     []string // "start", "stop", "once"
	streams []*fakeStream
	startErr error

	onceResult *translate.Result
	onceErr    error
	onceCalls  int
}

func (f *fakeRecognizer) StartContinuous(_ context.Context, _ string, _ []string) (translate.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.ops = append(f.ops, "start")
	s := newFakeStream()
	s.onStop = func() {
		f.mu.Lock()
		f.ops = append(f.ops, "stop")
		f.mu.Unlock()
	}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeRecognizer) RecognizeOnce(_ context.Context, _ []byte, _ string, _ []string) (*translate.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onceCalls++
	if f.onceErr != nil {
		return nil, f.onceErr
	}
	return f.onceResult, nil
}

func (f *fakeRecognizer) opLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func (f *fakeRecognizer) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

var errSynthDown = errors.New("synthesis backend down")

// writeTestWAV writes a WAV file with the given channel count into dir
func writeTestWAV(t *testing.T, dir string, name string, channels uint16) string {
	t.Helper()

	var buf bytes.Buffer
	data := make([]byte, 32)
	blockAlign := channels * 2
	byteRate := uint32(16000) * uint32(blockAlign)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write test WAV: %v", err)
	}
	return path
}
