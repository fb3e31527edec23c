package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/artifact"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/config"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/interview"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/speech"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/transport"
)

// discardOutput drops playback frames. The embedding UI layer supplies a
// real speaker-backed Output; headless runs only need pacing.
type discardOutput struct{}

func (discardOutput) WriteFrame(pcm []byte, d time.Duration) error { return nil }

// consoleSink logs session updates and persists the final artifact.
type consoleSink struct {
	store   artifact.Store
	session func() interview.Snapshot
	done    chan struct{}
}

func (s *consoleSink) StateChanged(st interview.State) { log.Printf("state: %s", st) }
func (s *consoleSink) TranscriptAppended(e interview.TranscriptEntry) {
	log.Printf("[%s] %s", e.Speaker, e.Content)
}
func (s *consoleSink) PartialTranscript(text string) { log.Printf("(hearing) %s", text) }
func (s *consoleSink) TimerTick(remaining int) {
	if remaining%10 == 0 {
		log.Printf("%ds remaining to answer", remaining)
	}
}
func (s *consoleSink) Notice(text string) { log.Printf("notice: %s", text) }
func (s *consoleSink) Completed(r interview.Result) {
	snap := s.session()
	if err := s.store.Save(snap.SessionID, r); err != nil {
		log.Printf("failed to save result: %v", err)
	} else {
		log.Printf("result saved for session %s (%d entries, %dms)",
			snap.SessionID, len(r.Transcript), r.DurationMs)
	}
	close(s.done)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	name := flag.String("name", "Candidate", "candidate name")
	position := flag.String("position", "", "applied position")
	itype := flag.String("type", "general", "interview type")
	flag.Parse()

	cfg := config.Load()

	var store artifact.Store
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		s, err := artifact.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		if err != nil {
			log.Fatalf("supabase store: %v", err)
		}
		store = s
	} else {
		store = artifact.FileStore{Dir: cfg.ResultsDir}
	}

	pacer := speech.NewPacedWriter(discardOutput{})
	defer pacer.Close()
	synth := speech.NewDeepgramSynthesizer(cfg.DeepgramAPIKey, cfg.DeepgramTTSModel, pacer)
	recog := speech.NewAssemblyAIRecognizer(cfg.AssemblyAIKey)
	io := speech.NewIO(synth, recog)

	tr := transport.New(transport.Config{URL: cfg.ServerWSURL})

	sink := &consoleSink{store: store, done: make(chan struct{})}
	facade := interview.NewFacade(tr, io, sink, interview.Config{
		AnswerTimeout: cfg.AnswerTimeout,
		SettleDelay:   cfg.SettleDelay,
		BargeIn:       true,
	})
	sink.session = facade.Snapshot
	defer facade.Close()

	facade.Connect()

	// Wait for the session id before starting.
	deadline := time.Now().Add(15 * time.Second)
	for facade.Snapshot().SessionID == "" {
		if time.Now().After(deadline) {
			log.Fatalf("no session assigned within 15s")
		}
		time.Sleep(100 * time.Millisecond)
	}

	facade.StartInterview(protocol.UserProfile{
		"name":     *name,
		"position": *position,
	}, interview.InterviewType(*itype))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sink.done:
		log.Println("interview completed")
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
		facade.EndInterview()
		select {
		case <-sink.done:
		case <-time.After(3 * time.Second):
		}
	}
}
