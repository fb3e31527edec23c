package speech

import (
	"sync"
	"time"
)

// Output is the playback device boundary. The excluded device layer supplies
// an implementation that actually reaches the speaker.
type Output interface {
	// WriteFrame plays one PCM frame covering the given duration.
	WriteFrame(pcm []byte, d time.Duration) error
}

// PacedWriter buffers 48kHz mono PCM and delivers it to an Output in 20ms
// frames at wall-clock pace, so synthesis bursts do not overrun the device.
type PacedWriter struct {
	out        Output
	frameBytes int
	buf        []byte
	frames     chan []byte
	stopCh     chan struct{}
	stopped    bool
	mu         sync.Mutex
}

const (
	pacerFrameDur     = 20 * time.Millisecond
	pacerSampleRate   = 48000
	pacerFrameSamples = pacerSampleRate / 50 // 20ms
)

// NewPacedWriter constructs a paced writer with 20ms frames at 48kHz mono.
func NewPacedWriter(out Output) *PacedWriter {
	w := &PacedWriter{
		out:        out,
		frameBytes: pacerFrameSamples * 2,
		frames:     make(chan []byte, 512),
		stopCh:     make(chan struct{}),
	}
	go w.pacer()
	return w
}

// WritePCM buffers PCM data and emits full frames to the pacer.
func (w *PacedWriter) WritePCM(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, pcm...)
	for len(w.buf) >= w.frameBytes {
		frame := make([]byte, w.frameBytes)
		copy(frame, w.buf[:w.frameBytes])
		copy(w.buf, w.buf[w.frameBytes:])
		w.buf = w.buf[:len(w.buf)-w.frameBytes]
		w.pushFrame(frame)
	}
}

// FlushTail pads the remaining PCM to a full frame and appends a short
// silence tail to avoid clipping the end of an utterance.
func (w *PacedWriter) FlushTail() {
	w.mu.Lock()
	if len(w.buf) > 0 {
		frame := make([]byte, w.frameBytes)
		copy(frame, w.buf)
		w.buf = w.buf[:0]
		w.pushFrame(frame)
	}
	// ~200ms of silence
	for i := 0; i < 10; i++ {
		w.pushFrame(make([]byte, w.frameBytes))
	}
	w.mu.Unlock()
}

// Reset clears buffered and queued audio to make barge-in feel instant.
func (w *PacedWriter) Reset() {
	w.mu.Lock()
	w.buf = w.buf[:0]
	for {
		select {
		case <-w.frames:
		default:
			w.mu.Unlock()
			return
		}
	}
}

// Close stops the pacer goroutine.
func (w *PacedWriter) Close() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
	w.mu.Unlock()
}

func (w *PacedWriter) pacer() {
	ticker := time.NewTicker(pacerFrameDur)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-w.frames:
				_ = w.out.WriteFrame(frame, pacerFrameDur)
			default:
			}
		}
	}
}

// pushFrame enqueues a frame, dropping the oldest when the queue is full so
// a stalled device cannot block synthesis. Caller holds w.mu.
func (w *PacedWriter) pushFrame(frame []byte) {
	for {
		select {
		case <-w.stopCh:
			return
		case w.frames <- frame:
			return
		default:
			select {
			case <-w.frames:
			default:
			}
		}
	}
}
