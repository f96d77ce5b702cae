package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

type fakeRecognition struct {
	mu      sync.Mutex
	stopped int
	onStop  func()
}

func (r *fakeRecognition) Stop() {
	r.mu.Lock()
	r.stopped++
	onStop := r.onStop
	r.mu.Unlock()
	if onStop != nil {
		onStop()
	}
}

func (r *fakeRecognition) stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

type fakeRecognizer struct {
	mu        sync.Mutex
	starts    int
	opts      RecognitionOptions
	listener  RecognitionListener
	rec       *fakeRecognition
	startErr  error
	onStarted func(RecognitionListener)
}

func (f *fakeRecognizer) Start(_ context.Context, opts RecognitionOptions, l RecognitionListener) (Recognition, error) {
	f.mu.Lock()
	f.starts++
	f.opts = opts
	f.listener = l
	f.rec = &fakeRecognition{}
	err, hook, rec := f.startErr, f.onStarted, f.rec
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook(l)
	}
	return rec, nil
}

func (f *fakeRecognizer) last() RecognitionListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

func TestStartListening_NoCapability(t *testing.T) {
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(nil, s)

	err := a.StartListening(context.Background())

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCapabilityUnavailable))
	snap := s.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.True(t, eris.Is(snap.LastError, model.ErrCapabilityUnavailable))
	assert.False(t, a.Listening())
}

func TestStartListening_SingleUtteranceOptions(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s, WithLocale("en-GB"))

	require.NoError(t, a.StartListening(context.Background()))

	assert.Equal(t, RecognitionOptions{Locale: "en-GB", Interim: false, MaxAlternatives: 1}, rec.opts)
	assert.Equal(t, session.StatusCapturing, s.Snapshot().Status)
	assert.True(t, a.Listening())
}

func TestStartListening_AlreadyCapturing(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)

	require.NoError(t, a.StartListening(context.Background()))
	err := a.StartListening(context.Background())

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrAlreadyCapturing))
	assert.Equal(t, 1, rec.starts)
	snap := s.Snapshot()
	assert.Equal(t, session.StatusCapturing, snap.Status)
	assert.True(t, eris.Is(snap.LastError, model.ErrAlreadyCapturing))
	assert.NotEmpty(t, snap.ErrorMessage())
}

func TestOnResult_CommitsAndAnalyzes(t *testing.T) {
	rec := &fakeRecognizer{}
	sub := &instantSubmitter{result: &model.RiskResult{Level: model.RiskRed, Warning: "w"}}
	s := session.New(sub, session.WithModality(model.ModalityVoice))

	pending := make(chan *session.Pending, 1)
	a := NewVoiceAdapter(rec, s, WithAnalysisHook(func(p *session.Pending) { pending <- p }))

	require.NoError(t, a.StartListening(context.Background()))
	rec.last().OnResult("they said they will shame me to my contacts")
	rec.last().OnEnd()

	var p *session.Pending
	select {
	case p = <-pending:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis was not started")
	}
	out, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	snap := s.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Equal(t, model.RiskRed, snap.LastResult.Level)
	va := snap.Artifact.(*model.VoiceArtifact)
	assert.Equal(t, "they said they will shame me to my contacts", va.Transcript)
	assert.False(t, a.Listening())
	require.Len(t, sub.calls, 1)
}

func TestOnError_CommitsRecognitionFailed(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)

	require.NoError(t, a.StartListening(context.Background()))
	rec.last().OnError(errors.New("network"))
	rec.last().OnEnd()

	snap := s.Snapshot()
	assert.Equal(t, session.StatusErrored, snap.Status)
	assert.True(t, eris.Is(snap.LastError, model.ErrRecognitionFailed))
	assert.Nil(t, snap.Artifact)
	assert.False(t, a.Listening())
}

func TestOnEnd_WithoutResultIsSilent(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)

	require.NoError(t, a.StartListening(context.Background()))
	rec.last().OnEnd()

	snap := s.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Nil(t, snap.Artifact)
	assert.Nil(t, snap.LastError)
	assert.False(t, a.Listening())
}

func TestStopListening_NoArtifactNoError(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)

	require.NoError(t, a.StartListening(context.Background()))
	a.StopListening()

	// Late engine events for the stopped session are ignored.
	rec.last().OnResult("too late")

	snap := s.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Nil(t, snap.Artifact)
	assert.Nil(t, snap.LastError)
	assert.Equal(t, 1, rec.rec.stops())

	// A new session can start afterwards.
	require.NoError(t, a.StartListening(context.Background()))
	assert.Equal(t, 2, rec.starts)
}

func TestSynchronousEventsDuringStart(t *testing.T) {
	rec := &fakeRecognizer{onStarted: func(l RecognitionListener) { l.OnEnd() }}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)

	require.NoError(t, a.StartListening(context.Background()))

	assert.False(t, a.Listening())
	assert.Equal(t, session.StatusIdle, s.Snapshot().Status)
	assert.Equal(t, 1, rec.rec.stops())
}

func TestStartFailure_CommitsRecognitionFailed(t *testing.T) {
	rec := &fakeRecognizer{startErr: errors.New("mic busy")}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)

	err := a.StartListening(context.Background())

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrRecognitionFailed))
	assert.Equal(t, session.StatusErrored, s.Snapshot().Status)
	assert.False(t, a.Listening())
}

func TestModalitySwitchStopsRecognizer(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewVoiceAdapter(rec, s)
	s.Subscribe(a.Observe)

	require.NoError(t, a.StartListening(context.Background()))
	require.NoError(t, s.SetModality(model.ModalityImage))

	assert.False(t, a.Listening())
	assert.Equal(t, 1, rec.rec.stops())
	rec.last().OnResult("late")
	assert.Nil(t, s.Snapshot().Artifact)
}

func TestStartListening_WrongModality(t *testing.T) {
	rec := &fakeRecognizer{}
	s := session.New(&instantSubmitter{})
	a := NewVoiceAdapter(rec, s)

	err := a.StartListening(context.Background())

	assert.ErrorIs(t, err, session.ErrWrongModality)
	assert.Equal(t, 0, rec.starts)
	assert.False(t, a.Listening())
	assert.ErrorIs(t, s.Snapshot().LastError, session.ErrWrongModality)
}
