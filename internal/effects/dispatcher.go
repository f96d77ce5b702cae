// Package effects turns committed verdicts into spoken, haptic and counter
// side effects.
package effects

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

// Defaults taken from the mobile alert behavior.
const (
	DefaultLocale   = "en-US"
	DefaultRate     = 0.95
	DefaultBaseline = 1241
)

// DefaultPattern is the vibration pattern for a RED verdict: on/off
// durations alternating, starting with on.
var DefaultPattern = []time.Duration{
	100 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	50 * time.Millisecond,
	500 * time.Millisecond,
}

// Utterance is one text-to-speech request.
type Utterance struct {
	Text   string
	Locale string
	Rate   float64
}

// Synthesizer is the host text-to-speech capability. Speak starts playback
// and returns; Cancel stops whatever is playing.
type Synthesizer interface {
	Speak(ctx context.Context, u Utterance) error
	Cancel()
}

// Haptics is the optional vibration capability. It is fire-and-forget.
type Haptics interface {
	Vibrate(pattern []time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSynthesizer sets the speech capability.
func WithSynthesizer(s Synthesizer) Option {
	return func(d *Dispatcher) { d.synth = s }
}

// WithHaptics sets the vibration capability. Nil means none.
func WithHaptics(h Haptics) Option {
	return func(d *Dispatcher) { d.haptics = h }
}

// WithVoice sets the locale and rate of spoken alerts.
func WithVoice(locale string, rate float64) Option {
	return func(d *Dispatcher) {
		if locale != "" {
			d.locale = locale
		}
		if rate > 0 {
			d.rate = rate
		}
	}
}

// WithPattern overrides the vibration pattern.
func WithPattern(p []time.Duration) Option {
	return func(d *Dispatcher) {
		if len(p) > 0 {
			d.pattern = append([]time.Duration(nil), p...)
		}
	}
}

// WithBaseline seeds the threats-blocked counter.
func WithBaseline(n int64) Option {
	return func(d *Dispatcher) { d.counter = n }
}

// Dispatcher fires verdict effects at most once per committed verdict.
type Dispatcher struct {
	synth   Synthesizer
	haptics Haptics
	locale  string
	rate    float64
	pattern []time.Duration

	mu          sync.Mutex
	lastFired   model.VerdictID
	lastWarning string
	counter     int64

	// speakMu keeps cancel-then-speak atomic so utterances never overlap.
	speakMu sync.Mutex
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		locale:  DefaultLocale,
		rate:    DefaultRate,
		pattern: DefaultPattern,
		counter: DefaultBaseline,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Observe handles session events. Register it with Session.Subscribe.
func (d *Dispatcher) Observe(ev session.Event) {
	switch ev.Kind {
	case session.EventVerdictCommitted:
		d.Fire(context.Background(), ev.Verdict)
	case session.EventModalityChanged, session.EventArtifactChanged, session.EventArtifactCleared:
		d.mu.Lock()
		d.lastWarning = ""
		d.mu.Unlock()
	}
}

// Fire runs the effects for v unless they already ran for this verdict. It
// reports whether anything was fired.
func (d *Dispatcher) Fire(ctx context.Context, v *model.RiskResult) bool {
	if v == nil || v.ID == "" {
		return false
	}

	d.mu.Lock()
	if v.ID == d.lastFired {
		d.mu.Unlock()
		return false
	}
	d.lastFired = v.ID
	d.lastWarning = v.Warning
	red := v.Level == model.RiskRed
	if red {
		d.counter++
	}
	count := d.counter
	d.mu.Unlock()

	if !red {
		return true
	}

	if d.haptics != nil {
		d.haptics.Vibrate(append([]time.Duration(nil), d.pattern...))
	}
	if err := d.speak(ctx, v.Warning); err != nil {
		zap.L().Warn("effects: spoken alert failed", zap.Error(err))
	}

	zap.L().Info("effects: red verdict alert",
		zap.String("verdict_id", string(v.ID)),
		zap.Int64("threats_blocked", count),
		zap.Bool("haptics", d.haptics != nil),
		zap.Bool("voice", d.synth != nil),
	)
	return true
}

// ReplayVoice speaks the last committed warning again. Without one it does
// nothing.
func (d *Dispatcher) ReplayVoice(ctx context.Context) error {
	d.mu.Lock()
	text := d.lastWarning
	d.mu.Unlock()
	if text == "" {
		return nil
	}
	return d.speak(ctx, text)
}

// ThreatsBlocked returns the display counter.
func (d *Dispatcher) ThreatsBlocked() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counter
}

func (d *Dispatcher) speak(ctx context.Context, text string) error {
	if d.synth == nil || text == "" {
		return nil
	}

	d.speakMu.Lock()
	defer d.speakMu.Unlock()

	d.synth.Cancel()
	if err := d.synth.Speak(ctx, Utterance{Text: text, Locale: d.locale, Rate: d.rate}); err != nil {
		return eris.Wrap(err, "effects: speak")
	}
	return nil
}
