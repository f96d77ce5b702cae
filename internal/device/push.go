package device

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/trunghafromvietnam/aegis-share/internal/capture"
)

// ErrNotListening is returned when an utterance is pushed with no live
// recognition session.
var ErrNotListening = eris.New("device: not listening")

// PushRecognizer is a recognizer whose results are pushed in from outside,
// e.g. a browser that ran speech recognition itself.
type PushRecognizer struct {
	mu     sync.Mutex
	active *pushSession
}

type pushSession struct {
	owner    *PushRecognizer
	listener capture.RecognitionListener
}

// NewPushRecognizer creates a PushRecognizer.
func NewPushRecognizer() *PushRecognizer {
	return &PushRecognizer{}
}

// Start opens a session that waits for Deliver or Fail. A previous session
// is replaced.
func (r *PushRecognizer) Start(ctx context.Context, _ capture.RecognitionOptions, l capture.RecognitionListener) (capture.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "device: start recognizer")
	}
	s := &pushSession{owner: r, listener: l}
	r.mu.Lock()
	r.active = s
	r.mu.Unlock()
	return s, nil
}

// Deliver ends the live session with a finalized transcript.
func (r *PushRecognizer) Deliver(transcript string) error {
	l, err := r.take()
	if err != nil {
		return err
	}
	l.OnResult(transcript)
	l.OnEnd()
	return nil
}

// Fail ends the live session with an engine error.
func (r *PushRecognizer) Fail(cause error) error {
	l, err := r.take()
	if err != nil {
		return err
	}
	l.OnError(cause)
	l.OnEnd()
	return nil
}

func (r *PushRecognizer) take() (capture.RecognitionListener, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, ErrNotListening
	}
	l := r.active.listener
	r.active = nil
	return l, nil
}

// Stop drops the session if it is still live.
func (s *pushSession) Stop() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.owner.active == s {
		s.owner.active = nil
	}
}
