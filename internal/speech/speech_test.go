package speech

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSynth struct {
	cancels  int32
	speakDur time.Duration
}

func (f *fakeSynth) Speak(ctx context.Context, text string) error {
	select {
	case <-time.After(f.speakDur):
	case <-ctx.Done():
	}
	return nil
}
func (f *fakeSynth) Cancel() { atomic.AddInt32(&f.cancels, 1) }

type fakeRecog struct {
	starts int32
	stops  int32
}

func (f *fakeRecog) StartCapture(ctx context.Context) (<-chan Result, error) {
	atomic.AddInt32(&f.starts, 1)
	ch := make(chan Result)
	return ch, nil
}
func (f *fakeRecog) StopCapture() { atomic.AddInt32(&f.stops, 1) }

func TestIO_StartCaptureBargesInOnSpeech(t *testing.T) {
	synth := &fakeSynth{speakDur: time.Second}
	recog := &fakeRecog{}
	io := NewIO(synth, recog)

	go func() { _ = io.Speak(context.Background(), "a long question?") }()
	time.Sleep(10 * time.Millisecond)

	if _, err := io.StartCapture(context.Background()); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	if atomic.LoadInt32(&synth.cancels) == 0 {
		t.Fatalf("capture start must cancel in-progress speech")
	}
	if atomic.LoadInt32(&recog.starts) != 1 {
		t.Fatalf("expected one capture start")
	}
}

func TestIO_SpeakCancelsPriorUtterance(t *testing.T) {
	synth := &fakeSynth{speakDur: 200 * time.Millisecond}
	recog := &fakeRecog{}
	io := NewIO(synth, recog)

	go func() { _ = io.Speak(context.Background(), "first?") }()
	time.Sleep(10 * time.Millisecond)
	done := make(chan struct{})
	go func() { _ = io.Speak(context.Background(), "second?"); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("second utterance never completed")
	}
	if atomic.LoadInt32(&synth.cancels) == 0 {
		t.Fatalf("expected prior utterance cancelled")
	}
}

func TestError_Formatting(t *testing.T) {
	err := Errorf(CodePermissionDenied, "mic blocked by %s", "policy")
	if err.Code != CodePermissionDenied {
		t.Fatalf("code = %s", err.Code)
	}
	want := "speech: permission_denied: mic blocked by policy"
	if err.Error() != want {
		t.Fatalf("error string = %q, want %q", err.Error(), want)
	}
}
