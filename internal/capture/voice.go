package capture

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

// DefaultLocale is the recognition locale when none is configured.
const DefaultLocale = "en-US"

// ErrCancelledWhileStarting is returned when the session discarded the
// capture before the recognizer was started.
var ErrCancelledWhileStarting = eris.New("capture: cancelled while starting")

// VoiceSink is the part of the session the voice adapter drives.
type VoiceSink interface {
	BeginCapture() (session.CaptureToken, error)
	EndCapture(token session.CaptureToken) bool
	CommitTranscript(token session.CaptureToken, transcript, locale string) bool
	FailCapture(token session.CaptureToken, cause error) bool
	ReportError(err error)
	BeginAnalysis(ctx context.Context) (*session.Pending, error)
}

// VoiceOption configures a VoiceAdapter.
type VoiceOption func(*VoiceAdapter)

// WithLocale sets the fixed recognition locale.
func WithLocale(locale string) VoiceOption {
	return func(a *VoiceAdapter) {
		if locale != "" {
			a.locale = locale
		}
	}
}

// WithAnalysisHook is called with the pending analysis started by a
// finalized transcript.
func WithAnalysisHook(fn func(*session.Pending)) VoiceOption {
	return func(a *VoiceAdapter) {
		a.onAnalysis = fn
	}
}

// VoiceAdapter runs at most one single-utterance recognition session and
// submits its transcript as soon as it is final.
type VoiceAdapter struct {
	recognizer Recognizer
	sink       VoiceSink
	locale     string
	onAnalysis func(*session.Pending)

	mu     sync.Mutex
	active *listening
}

type listening struct {
	token session.CaptureToken
	ctx   context.Context
	rec   Recognition
}

// NewVoiceAdapter creates an adapter. A nil recognizer means the host has no
// speech recognition.
func NewVoiceAdapter(recognizer Recognizer, sink VoiceSink, opts ...VoiceOption) *VoiceAdapter {
	a := &VoiceAdapter{
		recognizer: recognizer,
		sink:       sink,
		locale:     DefaultLocale,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Listening reports whether a recognition session is live.
func (a *VoiceAdapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// StartListening opens a recognition session. It fails with
// CapabilityUnavailable when the host has no recognizer and with
// AlreadyCapturing when a session is already live.
func (a *VoiceAdapter) StartListening(ctx context.Context) error {
	if a.recognizer == nil {
		err := eris.Wrap(model.ErrCapabilityUnavailable, "capture: speech recognition")
		a.sink.ReportError(err)
		return err
	}

	a.mu.Lock()
	if a.active != nil {
		a.mu.Unlock()
		err := eris.Wrap(model.ErrAlreadyCapturing, "capture: start listening")
		a.sink.ReportError(err)
		return err
	}
	st := &listening{ctx: context.WithoutCancel(ctx)}
	a.active = st
	a.mu.Unlock()

	// Session calls deliver events to observers, Observe included, so the
	// adapter lock is never held across them.
	token, err := a.sink.BeginCapture()
	if err != nil {
		a.release(st)
		a.sink.ReportError(err)
		return err
	}
	a.mu.Lock()
	if a.active != st {
		a.mu.Unlock()
		a.sink.EndCapture(token)
		return ErrCancelledWhileStarting
	}
	st.token = token
	a.mu.Unlock()

	// The recognizer may emit events synchronously, so no lock is held here.
	rec, err := a.recognizer.Start(ctx, RecognitionOptions{
		Locale:          a.locale,
		Interim:         false,
		MaxAlternatives: 1,
	}, &listener{adapter: a, state: st})
	if err != nil {
		if !a.release(st) {
			return err
		}
		if eris.Is(err, model.ErrCapabilityUnavailable) {
			a.sink.EndCapture(token)
			a.sink.ReportError(err)
			return err
		}
		a.sink.FailCapture(token, err)
		return eris.Wrap(model.ErrRecognitionFailed, "capture: start recognizer")
	}

	a.mu.Lock()
	if a.active == st {
		st.rec = rec
		a.mu.Unlock()
	} else {
		// Ended while starting.
		a.mu.Unlock()
		rec.Stop()
	}

	zap.L().Debug("capture: listening", zap.String("locale", a.locale))
	return nil
}

// StopListening cancels the live session without an artifact or an error.
func (a *VoiceAdapter) StopListening() {
	st := a.detach()
	if st == nil {
		return
	}
	a.sink.EndCapture(st.token)
}

// Observe stops the recognizer when the session discards the capture.
// Register it with Session.Subscribe.
func (a *VoiceAdapter) Observe(ev session.Event) {
	switch ev.Kind {
	case session.EventModalityChanged, session.EventArtifactCleared:
		a.detach()
	}
}

// detach clears and stops the live session, returning it.
func (a *VoiceAdapter) detach() *listening {
	a.mu.Lock()
	st := a.active
	a.active = nil
	a.mu.Unlock()

	if st != nil && st.rec != nil {
		st.rec.Stop()
	}
	return st
}

// release clears st if it is still the live session.
func (a *VoiceAdapter) release(st *listening) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != st {
		return false
	}
	a.active = nil
	return true
}

func (a *VoiceAdapter) handleResult(st *listening, transcript string) {
	if !a.release(st) {
		return
	}
	if !a.sink.CommitTranscript(st.token, transcript, a.locale) {
		return
	}

	p, err := a.sink.BeginAnalysis(st.ctx)
	if err != nil {
		zap.L().Warn("capture: analysis after transcript rejected", zap.Error(err))
		return
	}
	if a.onAnalysis != nil {
		a.onAnalysis(p)
	}
}

func (a *VoiceAdapter) handleError(st *listening, err error) {
	if !a.release(st) {
		return
	}
	zap.L().Warn("capture: recognition failed", zap.Error(err))
	a.sink.FailCapture(st.token, err)
}

func (a *VoiceAdapter) handleEnd(st *listening) {
	if !a.release(st) {
		return
	}
	a.sink.EndCapture(st.token)
}

// listener binds engine events to the session they belong to; events from
// a session that is no longer live are dropped.
type listener struct {
	adapter *VoiceAdapter
	state   *listening
}

func (l *listener) OnResult(transcript string) { l.adapter.handleResult(l.state, transcript) }
func (l *listener) OnError(err error)          { l.adapter.handleError(l.state, err) }
func (l *listener) OnEnd()                     { l.adapter.handleEnd(l.state) }
