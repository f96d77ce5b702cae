package main

import (
	"github.com/trunghafromvietnam/aegis-share/internal/analysis"
	"github.com/trunghafromvietnam/aegis-share/internal/capture"
	"github.com/trunghafromvietnam/aegis-share/internal/effects"
	"github.com/trunghafromvietnam/aegis-share/internal/export"
	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/report"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
	"github.com/trunghafromvietnam/aegis-share/pkg/guardian"
)

// hostCaps are the device capabilities available to a command. Any of them
// may be nil.
type hostCaps struct {
	Recognizer capture.Recognizer
	Synth      effects.Synthesizer
	Haptics    effects.Haptics
}

// appEnv is one wired analysis session with its adapters and effects.
type appEnv struct {
	Session *session.Session
	Effects *effects.Dispatcher
	Images  *capture.ImageAdapter
	Voice   *capture.VoiceAdapter

	unsubscribe []func()
}

func newGuardianClient() guardian.Client {
	return guardian.NewClient(cfg.API.BaseURL, guardian.WithTimeout(cfg.API.Timeout()))
}

// initApp wires a session to client and the host capabilities. Callers
// should defer env.Close().
func initApp(client guardian.Client, host hostCaps, modality model.Modality) *appEnv {
	exporter := export.New(
		export.WithSaver(export.FileSaver{Dir: cfg.Export.Dir}),
		export.WithFilename(cfg.Export.Filename),
		export.WithSettle(cfg.Export.Settle()),
		export.WithScale(cfg.Export.Scale),
	)

	sess := session.New(analysis.NewGateway(client),
		session.WithExporter(exporter),
		session.WithModality(modality),
	)

	effectOpts := []effects.Option{
		effects.WithVoice(cfg.Voice.Locale, cfg.Voice.Rate),
		effects.WithPattern(cfg.Haptics.PatternDurations()),
		effects.WithBaseline(cfg.Counter.Baseline),
	}
	if host.Synth != nil {
		effectOpts = append(effectOpts, effects.WithSynthesizer(host.Synth))
	}
	if cfg.Haptics.Enabled && host.Haptics != nil {
		effectOpts = append(effectOpts, effects.WithHaptics(host.Haptics))
	}
	disp := effects.New(effectOpts...)

	voice := capture.NewVoiceAdapter(host.Recognizer, sess, capture.WithLocale(cfg.Voice.Locale))

	env := &appEnv{
		Session: sess,
		Effects: disp,
		Images:  capture.NewImageAdapter(sess),
		Voice:   voice,
	}
	env.unsubscribe = append(env.unsubscribe,
		sess.Subscribe(voice.Observe),
		sess.Subscribe(disp.Observe),
	)
	return env
}

// State is the current session presentation including the counter.
func (e *appEnv) State() report.State {
	return report.NewState(e.Session.Snapshot(), report.Counter(cfg.Voice.Locale, e.Effects.ThreatsBlocked()))
}

// Close stops live capture, cancels any in-flight request and detaches
// observers.
func (e *appEnv) Close() {
	e.Voice.StopListening()
	e.Session.Close()
	for _, u := range e.unsubscribe {
		u()
	}
}
