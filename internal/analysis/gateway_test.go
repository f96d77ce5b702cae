package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/pkg/guardian"
	"github.com/trunghafromvietnam/aegis-share/pkg/guardian/mocks"
)

func confidence(v float64) *float64 { return &v }

func TestSubmit_ImageArtifact(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("AnalyzeImage", mock.Anything, guardian.ImageUpload{
		Filename:    "loan.png",
		ContentType: "image/png",
		Data:        []byte("png"),
	}).Return(&guardian.AnalysisResponse{
		RiskLevel:          "RED",
		Confidence:         confidence(0.8),
		RedFlags:           []guardian.RedFlag{{Type: "CONTACTS_PERMISSION", Evidence: "asks for contacts"}},
		OneSentenceWarning: "w",
		SafeActions:        []string{"a1", "a2"},
	}, nil).Once()

	gw := NewGateway(client)
	got, err := gw.Submit(context.Background(), &model.ImageArtifact{
		ID:          model.NewArtifactID(),
		Filename:    "loan.png",
		ContentType: "image/png",
		Data:        []byte("png"),
	})

	require.NoError(t, err)
	assert.Equal(t, model.RiskRed, got.Level)
	assert.Equal(t, "w", got.Warning)
	assert.Equal(t, []string{"a1", "a2"}, got.SafeActions)
	assert.Equal(t, []model.RedFlag{{Kind: "CONTACTS_PERMISSION", Evidence: "asks for contacts"}}, got.RedFlags)
	c, ok := got.ClampedConfidence()
	assert.True(t, ok)
	assert.InDelta(t, 0.8, c, 0.0001)
}

func TestSubmit_VoiceArtifact(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("VoiceGuardian", mock.Anything, "pay the fee today").
		Return(&guardian.AnalysisResponse{RiskLevel: "GREEN", OneSentenceWarning: "ok"}, nil).Once()

	got, err := NewGateway(client).Submit(context.Background(), &model.VoiceArtifact{
		ID:         model.NewArtifactID(),
		Transcript: "pay the fee today",
	})

	require.NoError(t, err)
	assert.Equal(t, model.RiskGreen, got.Level)
	assert.NotNil(t, got.RedFlags)
	assert.Empty(t, got.RedFlags)
	assert.NotNil(t, got.SafeActions)
	assert.Empty(t, got.SafeActions)
	assert.Nil(t, got.Confidence)
}

func TestSubmit_EveryCallIsFresh(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("VoiceGuardian", mock.Anything, "same").
		Return(&guardian.AnalysisResponse{RiskLevel: "YELLOW", OneSentenceWarning: "hmm"}, nil).Twice()

	gw := NewGateway(client)
	artifact := &model.VoiceArtifact{ID: model.NewArtifactID(), Transcript: "same"}
	_, err := gw.Submit(context.Background(), artifact)
	require.NoError(t, err)
	_, err = gw.Submit(context.Background(), artifact)
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "VoiceGuardian", 2)
}

func TestSubmit_StatusErrorIsServiceUnavailable(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("AnalyzeImage", mock.Anything, mock.Anything).
		Return(nil, &guardian.StatusError{Endpoint: guardian.PathAnalyzeImage, StatusCode: 500, Body: "boom"}).Once()

	_, err := NewGateway(client).Submit(context.Background(), &model.ImageArtifact{ID: model.NewArtifactID()})

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrServiceUnavailable))
	assert.Equal(t, MsgImageCoreDown, model.UserMessage(err))

	var se *model.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Status)
}

func TestSubmit_TransportErrorIsServiceUnavailable(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("VoiceGuardian", mock.Anything, "hi").
		Return(nil, eris.Wrap(errors.New("connection refused"), "guardian: send request")).Once()

	_, err := NewGateway(client).Submit(context.Background(), &model.VoiceArtifact{ID: model.NewArtifactID(), Transcript: "hi"})

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrServiceUnavailable))
	assert.Equal(t, MsgVoiceCoreDown, model.UserMessage(err))
}

func TestSubmit_DecodeErrorIsMalformed(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("VoiceGuardian", mock.Anything, "hi").
		Return(nil, eris.Wrap(guardian.ErrDecode, "bad json")).Once()

	_, err := NewGateway(client).Submit(context.Background(), &model.VoiceArtifact{ID: model.NewArtifactID(), Transcript: "hi"})

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrMalformedResponse))
	assert.False(t, eris.Is(err, model.ErrServiceUnavailable))
}

func TestSubmit_MissingWarningIsMalformed(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("VoiceGuardian", mock.Anything, "hi").
		Return(&guardian.AnalysisResponse{RiskLevel: "RED"}, nil).Once()

	_, err := NewGateway(client).Submit(context.Background(), &model.VoiceArtifact{ID: model.NewArtifactID(), Transcript: "hi"})

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrMalformedResponse))
}

func TestSubmit_UnknownLevelIsMalformed(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("VoiceGuardian", mock.Anything, "hi").
		Return(&guardian.AnalysisResponse{RiskLevel: "ORANGE", OneSentenceWarning: "w"}, nil).Once()

	_, err := NewGateway(client).Submit(context.Background(), &model.VoiceArtifact{ID: model.NewArtifactID(), Transcript: "hi"})

	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrMalformedResponse))
}

func TestNormalize_Nil(t *testing.T) {
	t.Parallel()
	_, err := Normalize(nil)
	assert.True(t, eris.Is(err, model.ErrMalformedResponse))
}
