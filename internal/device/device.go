// Package device provides terminal implementations of the host
// capabilities: speech recognition, speech synthesis and haptics.
package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trunghafromvietnam/aegis-share/internal/capture"
	"github.com/trunghafromvietnam/aegis-share/internal/effects"
)

// LineRecognizer treats one line of input as one finalized utterance. An
// empty line or end of input ends the session without a result.
type LineRecognizer struct {
	prompt io.Writer

	mu sync.Mutex
	in *bufio.Reader
}

// NewLineRecognizer reads utterances from in. When prompt is non-nil a
// listening hint is written to it on every start.
func NewLineRecognizer(in io.Reader, prompt io.Writer) *LineRecognizer {
	return &LineRecognizer{in: bufio.NewReader(in), prompt: prompt}
}

// Start begins reading the next line. A stopped session drops the line it
// was waiting for.
func (r *LineRecognizer) Start(ctx context.Context, opts capture.RecognitionOptions, l capture.RecognitionListener) (capture.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "device: start recognizer")
	}
	if r.prompt != nil {
		fmt.Fprintf(r.prompt, "Listening (%s). Type what you heard, then Enter:\n> ", opts.Locale)
	}

	rec := &lineRecognition{done: make(chan struct{})}
	go r.read(ctx, rec, l)
	return rec, nil
}

func (r *LineRecognizer) read(ctx context.Context, rec *lineRecognition, l capture.RecognitionListener) {
	type line struct {
		text string
		err  error
	}
	got := make(chan line, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		s, err := r.in.ReadString('\n')
		got <- line{text: s, err: err}
	}()

	var res line
	select {
	case res = <-got:
	case <-ctx.Done():
		rec.Stop()
		return
	case <-rec.done:
		return
	}
	if !rec.claim() {
		return
	}

	text := strings.TrimSpace(res.text)
	switch {
	case text != "":
		l.OnResult(text)
	case res.err != nil && res.err != io.EOF:
		l.OnError(eris.Wrap(res.err, "device: read utterance"))
	}
	l.OnEnd()
}

type lineRecognition struct {
	once sync.Once
	done chan struct{}
}

// Stop ends the session. Events are no longer delivered.
func (r *lineRecognition) Stop() {
	r.once.Do(func() { close(r.done) })
}

// claim marks the session as finished by the engine; it fails when Stop got
// there first.
func (r *lineRecognition) claim() bool {
	claimed := false
	r.once.Do(func() {
		claimed = true
		close(r.done)
	})
	return claimed
}

// ConsoleSynthesizer "speaks" by printing the utterance.
type ConsoleSynthesizer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSynthesizer writes utterances to out.
func NewConsoleSynthesizer(out io.Writer) *ConsoleSynthesizer {
	return &ConsoleSynthesizer{out: out}
}

// Speak prints u.
func (s *ConsoleSynthesizer) Speak(ctx context.Context, u effects.Utterance) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "device: speak")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "[voice %s x%.2f] %s\n", u.Locale, u.Rate, u.Text)
	return eris.Wrap(err, "device: speak")
}

// Cancel is a no-op: printed speech finishes instantly.
func (s *ConsoleSynthesizer) Cancel() {}

// Bell vibrates by ringing the terminal bell once per "on" segment.
type Bell struct {
	out io.Writer
}

// NewBell writes bell characters to out.
func NewBell(out io.Writer) *Bell {
	return &Bell{out: out}
}

// Vibrate rings for the pattern. Segments alternate on and off, starting
// on; durations are not reproduced.
func (b *Bell) Vibrate(pattern []time.Duration) {
	for i := range pattern {
		if i%2 == 0 {
			_, _ = io.WriteString(b.out, "\a")
		}
	}
}
