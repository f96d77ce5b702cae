// Package session owns the state of one risk analysis session. Every state
// change goes through a Session method; other components read snapshots or
// observe events.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/analysis"
	"github.com/trunghafromvietnam/aegis-share/internal/model"
)

// ErrWrongModality is returned when a capture is offered for a modality
// that is not active.
var ErrWrongModality = eris.New("session: capture does not match active modality")

// CardExporter renders a verdict into a shareable image data URL.
type CardExporter interface {
	Export(ctx context.Context, result *model.RiskResult) (string, error)
}

// CaptureToken identifies one live voice capture. Zero means none.
type CaptureToken uint64

// Option configures a Session.
type Option func(*Session)

// WithExporter sets the card exporter used by ExportCard.
func WithExporter(e CardExporter) Option {
	return func(s *Session) {
		s.exporter = e
	}
}

// WithModality sets the initial modality. The default is image.
func WithModality(m model.Modality) Option {
	return func(s *Session) {
		if m.Valid() {
			s.modality = m
		}
	}
}

// Session is the single writer of the analysis session state.
type Session struct {
	submitter analysis.Submitter
	exporter  CardExporter
	bus       *bus

	mu          sync.Mutex
	modality    model.Modality
	artifact    model.Artifact
	status      Status
	result      *model.RiskResult
	err         error
	exportedURL string
	// generation changes whenever the artifact or modality does; a pending
	// request whose generation no longer matches is stale.
	generation uint64
	capture    CaptureToken
	nextToken  CaptureToken
	// inflight stays set until its request returns, stale or not, so only
	// one gateway call is ever outstanding.
	inflight *Pending
}

// New creates a Session that submits artifacts through submitter.
func New(submitter analysis.Submitter, opts ...Option) *Session {
	s := &Session{
		submitter: submitter,
		bus:       newBus(),
		modality:  model.ModalityImage,
		status:    StatusIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Session) Subscribe(o Observer) func() {
	return s.bus.subscribe(o)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Modality:    s.modality,
		Artifact:    s.artifact,
		Status:      s.status,
		LastResult:  s.result.Clone(),
		LastError:   s.err,
		ExportedURL: s.exportedURL,
		Draining:    s.inflight != nil && s.status != StatusAnalyzing,
	}
}

// SetModality switches the capture channel. The artifact, verdict, error,
// exported card and any live capture are discarded; a pending analysis is
// left to finish but its result will be dropped as stale.
func (s *Session) SetModality(m model.Modality) error {
	if !m.Valid() {
		return eris.Errorf("session: unknown modality %q", string(m))
	}

	s.mu.Lock()
	if s.modality == m {
		s.mu.Unlock()
		return nil
	}
	from := s.modality
	s.modality = m
	s.resetCaptureLocked()
	s.result = nil
	s.err = nil
	s.setStatusLocked(StatusIdle)
	s.bus.enqueue(Event{Kind: EventModalityChanged, Modality: m, Status: s.status})
	s.mu.Unlock()
	s.bus.drain()

	zap.L().Info("session: modality changed", zap.String("from", string(from)), zap.String("to", string(m)))
	return nil
}

// AcceptImage replaces the current artifact with img. Any verdict, error
// and exported card are cleared and the session becomes ready to submit.
func (s *Session) AcceptImage(img *model.ImageArtifact) error {
	if img == nil || len(img.Data) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.modality != model.ModalityImage {
		s.mu.Unlock()
		return ErrWrongModality
	}
	if img.ID == "" {
		img.ID = model.NewArtifactID()
	}
	s.capture = 0
	s.replaceArtifactLocked(img)
	s.result = nil
	s.err = nil
	s.setStatusLocked(StatusIdle)
	s.bus.enqueue(Event{Kind: EventArtifactChanged, Modality: s.modality, Status: s.status})
	s.mu.Unlock()
	s.bus.drain()
	return nil
}

// ClearArtifact releases the artifact and clears the verdict and error.
func (s *Session) ClearArtifact() {
	s.mu.Lock()
	if s.artifact == nil && s.result == nil && s.err == nil && s.status == StatusIdle {
		s.mu.Unlock()
		return
	}
	s.resetCaptureLocked()
	s.result = nil
	s.err = nil
	s.setStatusLocked(StatusIdle)
	s.bus.enqueue(Event{Kind: EventArtifactCleared, Modality: s.modality, Status: s.status})
	s.mu.Unlock()
	s.bus.drain()
}

// BeginCapture enters CAPTURING for a live voice capture and returns the
// token that later capture events must present.
func (s *Session) BeginCapture() (CaptureToken, error) {
	s.mu.Lock()
	var err error
	switch {
	case s.modality != model.ModalityVoice:
		err = ErrWrongModality
	case s.status == StatusCapturing:
		err = eris.Wrap(model.ErrAlreadyCapturing, "session: begin capture")
	case s.status == StatusAnalyzing:
		err = eris.Wrap(model.ErrAlreadyAnalyzing, "session: begin capture")
	}
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	s.nextToken++
	s.capture = s.nextToken
	s.err = nil
	s.setStatusLocked(StatusCapturing)
	token := s.capture
	s.bus.enqueue(Event{Kind: EventStatusChanged, Modality: s.modality, Status: s.status})
	s.mu.Unlock()
	s.bus.drain()
	return token, nil
}

// EndCapture leaves CAPTURING without producing an artifact or an error.
// It reports whether token was still the live capture.
func (s *Session) EndCapture(token CaptureToken) bool {
	s.mu.Lock()
	if token == 0 || token != s.capture {
		s.mu.Unlock()
		return false
	}
	s.capture = 0
	s.setStatusLocked(StatusIdle)
	s.bus.enqueue(Event{Kind: EventStatusChanged, Modality: s.modality, Status: s.status})
	s.mu.Unlock()
	s.bus.drain()
	return true
}

// CommitTranscript turns a finalized transcript into the current artifact
// and leaves CAPTURING. An empty transcript ends the capture silently.
// It reports whether an artifact was committed.
func (s *Session) CommitTranscript(token CaptureToken, transcript, locale string) bool {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		s.EndCapture(token)
		return false
	}

	s.mu.Lock()
	if token == 0 || token != s.capture {
		s.mu.Unlock()
		return false
	}
	s.capture = 0
	s.replaceArtifactLocked(&model.VoiceArtifact{
		ID:         model.NewArtifactID(),
		Transcript: transcript,
		Locale:     locale,
	})
	s.result = nil
	s.err = nil
	s.setStatusLocked(StatusIdle)
	s.bus.enqueue(Event{Kind: EventArtifactChanged, Modality: s.modality, Status: s.status})
	s.mu.Unlock()
	s.bus.drain()
	return true
}

// FailCapture leaves CAPTURING with a RecognitionFailed error. The last
// committed verdict is kept.
func (s *Session) FailCapture(token CaptureToken, cause error) bool {
	s.mu.Lock()
	if token == 0 || token != s.capture {
		s.mu.Unlock()
		return false
	}
	s.capture = 0
	if cause == nil || !eris.Is(cause, model.ErrRecognitionFailed) {
		cause = eris.Wrapf(model.ErrRecognitionFailed, "session: %v", cause)
	}
	s.err = cause
	s.setStatusLocked(StatusErrored)
	s.bus.enqueue(Event{Kind: EventErrorCommitted, Modality: s.modality, Status: s.status, Err: cause})
	s.mu.Unlock()
	s.bus.drain()
	return true
}

// ReportError surfaces err as the user-visible error without changing the
// lifecycle status or the committed verdict.
func (s *Session) ReportError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.bus.enqueue(Event{Kind: EventErrorCommitted, Modality: s.modality, Status: s.status, Err: err})
	s.mu.Unlock()
	s.bus.drain()
}

// BeginAnalysis submits the current artifact. At most one analysis is in
// flight: a second call while one is pending fails with AlreadyAnalyzing
// and the pending one is untouched. A request superseded by a new artifact
// or modality still counts until its response arrives.
//
// The request outlives ctx cancellation of the caller so a short-lived
// caller (an HTTP handler) does not abort it; ctx values are kept.
func (s *Session) BeginAnalysis(ctx context.Context) (*Pending, error) {
	s.mu.Lock()
	var err error
	switch {
	case s.status == StatusAnalyzing || s.inflight != nil:
		err = eris.Wrap(model.ErrAlreadyAnalyzing, "session: begin analysis")
	case s.status == StatusCapturing:
		err = eris.Wrap(model.ErrAlreadyCapturing, "session: begin analysis")
	case s.artifact == nil:
		err = eris.Wrap(model.ErrNoArtifact, "session: begin analysis")
	}
	if err != nil {
		s.err = err
		s.bus.enqueue(Event{Kind: EventErrorCommitted, Modality: s.modality, Status: s.status, Err: err})
		s.mu.Unlock()
		s.bus.drain()
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := newPending(s.artifact, s.generation, cancel)
	s.inflight = p
	s.err = nil
	s.exportedURL = ""
	s.setStatusLocked(StatusAnalyzing)
	s.bus.enqueue(Event{Kind: EventStatusChanged, Modality: s.modality, Status: s.status})
	artifact := s.artifact
	s.mu.Unlock()
	s.bus.drain()

	go func() {
		result, err := s.submitter.Submit(reqCtx, artifact)
		s.resolve(p, result, err)
	}()

	return p, nil
}

// Analyze is BeginAnalysis followed by waiting for the outcome.
func (s *Session) Analyze(ctx context.Context) (Outcome, error) {
	p, err := s.BeginAnalysis(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return p.Wait(ctx)
}

// resolve commits the outcome of p unless the session has moved past the
// artifact that started it.
func (s *Session) resolve(p *Pending, result *model.RiskResult, err error) {
	s.mu.Lock()
	if s.inflight == p {
		s.inflight = nil
	} else {
		// Closed.
		s.mu.Unlock()
		p.finish(Outcome{Stale: true})
		return
	}
	if s.generation != p.generation || s.artifact == nil ||
		s.artifact.ArtifactID() != p.artifactID {
		s.mu.Unlock()
		zap.L().Info("session: discarding stale analysis",
			zap.String("artifact_id", string(p.artifactID)),
			zap.Bool("failed", err != nil),
		)
		p.finish(Outcome{Stale: true})
		return
	}

	p.cancel()

	var out Outcome
	if err != nil {
		s.err = err
		s.setStatusLocked(StatusErrored)
		s.bus.enqueue(Event{Kind: EventErrorCommitted, Modality: s.modality, Status: s.status, Err: err})
		out = Outcome{Err: err}
	} else {
		committed := result.Clone()
		committed.ID = model.NewVerdictID()
		s.result = committed
		s.err = nil
		s.exportedURL = ""
		s.setStatusLocked(StatusIdle)
		s.bus.enqueue(Event{Kind: EventVerdictCommitted, Modality: s.modality, Status: s.status, Verdict: committed.Clone()})
		out = Outcome{Result: committed.Clone()}
	}
	s.mu.Unlock()
	s.bus.drain()
	p.finish(out)
}

// ExportCard renders the committed verdict into an image data URL. Without
// a committed verdict it is a no-op returning "". A failure is surfaced as
// ExportFailed and never touches the verdict.
func (s *Session) ExportCard(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.result == nil || s.exporter == nil {
		s.mu.Unlock()
		return "", nil
	}
	verdict := s.result.Clone()
	s.mu.Unlock()

	url, err := s.exporter.Export(ctx, verdict)
	if err == nil && url == "" {
		err = eris.New("session: exporter returned an empty image")
	}
	if err != nil {
		if !eris.Is(err, model.ErrExportFailed) {
			err = eris.Wrapf(model.ErrExportFailed, "session: %v", err)
		}
		s.ReportError(err)
		return "", err
	}

	s.mu.Lock()
	if s.result != nil && s.result.ID == verdict.ID {
		s.exportedURL = url
		s.bus.enqueue(Event{Kind: EventCardExported, Modality: s.modality, Status: s.status, URL: url})
	}
	s.mu.Unlock()
	s.bus.drain()
	return url, nil
}

// Close cancels any in-flight request. Its result will be discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight.cancel()
		s.inflight = nil
		s.generation++
	}
}

// resetCaptureLocked discards the artifact, exported card and live capture.
// A pending request is not aborted; its result goes stale.
func (s *Session) resetCaptureLocked() {
	s.replaceArtifactLocked(nil)
	s.capture = 0
}

func (s *Session) replaceArtifactLocked(a model.Artifact) {
	s.artifact = a
	s.exportedURL = ""
	s.generation++
}

func (s *Session) setStatusLocked(to Status) {
	if s.status == to {
		return
	}
	zap.L().Debug("session: transition", zap.String("from", string(s.status)), zap.String("to", string(to)))
	s.status = to
}
