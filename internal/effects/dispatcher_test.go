package effects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

type fakeSynth struct {
	mu       sync.Mutex
	calls    []string
	spoken   []Utterance
	speakErr error
}

func (f *fakeSynth) Speak(_ context.Context, u Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "speak")
	f.spoken = append(f.spoken, u)
	return f.speakErr
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "cancel")
}

type fakeHaptics struct {
	patterns [][]time.Duration
}

func (f *fakeHaptics) Vibrate(p []time.Duration) {
	f.patterns = append(f.patterns, p)
}

func verdict(level model.RiskLevel, warning string) *model.RiskResult {
	return &model.RiskResult{
		ID:      model.NewVerdictID(),
		Level:   level,
		Warning: warning,
	}
}

func TestFire_Red(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	hap := &fakeHaptics{}
	d := New(WithSynthesizer(synth), WithHaptics(hap))

	fired := d.Fire(context.Background(), verdict(model.RiskRed, "w"))

	assert.True(t, fired)
	require.Len(t, hap.patterns, 1)
	assert.Equal(t, DefaultPattern, hap.patterns[0])
	assert.Equal(t, []string{"cancel", "speak"}, synth.calls)
	require.Len(t, synth.spoken, 1)
	assert.Equal(t, Utterance{Text: "w", Locale: "en-US", Rate: 0.95}, synth.spoken[0])
	assert.Equal(t, int64(DefaultBaseline+1), d.ThreatsBlocked())
}

func TestFire_TwoRedsCancelBeforeEachSpeak(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	d := New(WithSynthesizer(synth))

	d.Fire(context.Background(), verdict(model.RiskRed, "first"))
	d.Fire(context.Background(), verdict(model.RiskRed, "second"))

	assert.Equal(t, []string{"cancel", "speak", "cancel", "speak"}, synth.calls)
	assert.Equal(t, "second", synth.spoken[1].Text)
	assert.Equal(t, int64(DefaultBaseline+2), d.ThreatsBlocked())
}

func TestFire_NonRedDoesNothing(t *testing.T) {
	t.Parallel()

	for _, level := range []model.RiskLevel{model.RiskGreen, model.RiskYellow} {
		synth := &fakeSynth{}
		hap := &fakeHaptics{}
		d := New(WithSynthesizer(synth), WithHaptics(hap))

		d.Fire(context.Background(), verdict(level, "fine"))

		assert.Empty(t, synth.calls, level)
		assert.Empty(t, hap.patterns, level)
		assert.Equal(t, int64(DefaultBaseline), d.ThreatsBlocked(), level)
	}
}

func TestFire_SameVerdictOnce(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	hap := &fakeHaptics{}
	d := New(WithSynthesizer(synth), WithHaptics(hap))
	v := verdict(model.RiskRed, "w")

	assert.True(t, d.Fire(context.Background(), v))
	assert.False(t, d.Fire(context.Background(), v))
	assert.False(t, d.Fire(context.Background(), v.Clone()))

	assert.Len(t, hap.patterns, 1)
	assert.Len(t, synth.spoken, 1)
	assert.Equal(t, int64(DefaultBaseline+1), d.ThreatsBlocked())
}

func TestFire_NoCapabilities(t *testing.T) {
	t.Parallel()

	d := New()
	assert.True(t, d.Fire(context.Background(), verdict(model.RiskRed, "w")))
	assert.Equal(t, int64(DefaultBaseline+1), d.ThreatsBlocked())
}

func TestFire_IgnoresNilAndUnidentified(t *testing.T) {
	t.Parallel()

	d := New()
	assert.False(t, d.Fire(context.Background(), nil))
	assert.False(t, d.Fire(context.Background(), &model.RiskResult{Level: model.RiskRed, Warning: "w"}))
}

func TestFire_SpeakErrorDoesNotStopCounter(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{speakErr: errors.New("no voices")}
	d := New(WithSynthesizer(synth), WithBaseline(10))

	assert.True(t, d.Fire(context.Background(), verdict(model.RiskRed, "w")))
	assert.Equal(t, int64(11), d.ThreatsBlocked())
}

func TestOptions(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	hap := &fakeHaptics{}
	pattern := []time.Duration{time.Second}
	d := New(
		WithSynthesizer(synth),
		WithHaptics(hap),
		WithVoice("vi-VN", 1.2),
		WithPattern(pattern),
		WithBaseline(0),
	)

	d.Fire(context.Background(), verdict(model.RiskRed, "w"))

	assert.Equal(t, Utterance{Text: "w", Locale: "vi-VN", Rate: 1.2}, synth.spoken[0])
	assert.Equal(t, pattern, hap.patterns[0])
	assert.Equal(t, int64(1), d.ThreatsBlocked())
}

func TestReplayVoice(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	d := New(WithSynthesizer(synth))

	require.NoError(t, d.ReplayVoice(context.Background()))
	assert.Empty(t, synth.calls, "no verdict yet")

	d.Fire(context.Background(), verdict(model.RiskGreen, "looks fine"))
	require.NoError(t, d.ReplayVoice(context.Background()))
	assert.Equal(t, []string{"cancel", "speak"}, synth.calls)
	assert.Equal(t, "looks fine", synth.spoken[0].Text)
}

func TestReplayVoice_ClearedWithVerdict(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	d := New(WithSynthesizer(synth))

	d.Observe(session.Event{Kind: session.EventVerdictCommitted, Verdict: verdict(model.RiskGreen, "ok")})
	d.Observe(session.Event{Kind: session.EventModalityChanged, Modality: model.ModalityVoice})

	require.NoError(t, d.ReplayVoice(context.Background()))
	assert.Empty(t, synth.calls)
}

func TestReplayVoice_Error(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{speakErr: errors.New("busy")}
	d := New(WithSynthesizer(synth))
	d.Fire(context.Background(), verdict(model.RiskYellow, "careful"))

	err := d.ReplayVoice(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
}

func TestObserve_IgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	d := New(WithSynthesizer(synth))

	d.Observe(session.Event{Kind: session.EventStatusChanged, Status: session.StatusAnalyzing})
	d.Observe(session.Event{Kind: session.EventErrorCommitted, Err: errors.New("x")})

	assert.Empty(t, synth.calls)
	assert.Equal(t, int64(DefaultBaseline), d.ThreatsBlocked())
}
