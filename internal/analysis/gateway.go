// Package analysis turns a capture artifact into a validated verdict by
// calling the scoring service.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/pkg/guardian"
)

// Messages surfaced to the user when the scoring service cannot be reached.
const (
	MsgImageCoreDown = "Aegis Core disconnected."
	MsgVoiceCoreDown = "Aegis Voice Core disconnected."
)

// Submitter is the contract the session depends on.
type Submitter interface {
	Submit(ctx context.Context, artifact model.Artifact) (*model.RiskResult, error)
}

// Gateway is stateless: every Submit issues exactly one fresh request.
type Gateway struct {
	client guardian.Client
}

// NewGateway creates a Gateway backed by client.
func NewGateway(client guardian.Client) *Gateway {
	return &Gateway{client: client}
}

// Submit sends the artifact to the endpoint matching its variant. Failures
// are ServiceUnavailable (transport or non-2xx) or MalformedResponse
// (undecodable or invalid 2xx body).
func (g *Gateway) Submit(ctx context.Context, artifact model.Artifact) (*model.RiskResult, error) {
	start := time.Now()

	var (
		resp     *guardian.AnalysisResponse
		err      error
		endpoint string
		downMsg  string
	)
	switch a := artifact.(type) {
	case *model.ImageArtifact:
		endpoint, downMsg = guardian.PathAnalyzeImage, MsgImageCoreDown
		resp, err = g.client.AnalyzeImage(ctx, guardian.ImageUpload{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	case *model.VoiceArtifact:
		endpoint, downMsg = guardian.PathVoiceGuardian, MsgVoiceCoreDown
		resp, err = g.client.VoiceGuardian(ctx, a.Transcript)
	default:
		return nil, eris.Wrap(model.ErrNoArtifact, "analysis: unsupported artifact")
	}

	log := zap.L().With(
		zap.String("endpoint", endpoint),
		zap.String("artifact_id", string(artifact.ArtifactID())),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err != nil {
		if eris.Is(err, guardian.ErrDecode) {
			log.Warn("analysis: undecodable verdict", zap.Error(err))
			return nil, eris.Wrapf(model.ErrMalformedResponse, "analysis: %s", endpoint)
		}
		status := 0
		var se *guardian.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		log.Warn("analysis: scoring service unavailable", zap.Int("status", status), zap.Error(err))
		return nil, model.NewServiceError(downMsg, status, err)
	}

	result, err := Normalize(resp)
	if err != nil {
		log.Warn("analysis: invalid verdict", zap.Error(err))
		return nil, err
	}

	log.Info("analysis: verdict received", zap.String("risk_level", string(result.Level)))
	return result, nil
}

// Normalize converts the wire verdict into a validated RiskResult. Missing
// optional lists become empty; confidence is kept as reported and clamped at
// display time.
func Normalize(resp *guardian.AnalysisResponse) (*model.RiskResult, error) {
	if resp == nil {
		return nil, eris.Wrap(model.ErrMalformedResponse, "analysis: empty body")
	}

	result := &model.RiskResult{
		Level:       model.RiskLevel(resp.RiskLevel),
		Warning:     resp.OneSentenceWarning,
		RedFlags:    make([]model.RedFlag, 0, len(resp.RedFlags)),
		SafeActions: make([]string, 0, len(resp.SafeActions)),
	}
	if resp.Confidence != nil {
		c := *resp.Confidence
		result.Confidence = &c
	}
	for _, f := range resp.RedFlags {
		result.RedFlags = append(result.RedFlags, model.RedFlag{Kind: f.Type, Evidence: f.Evidence})
	}
	result.SafeActions = append(result.SafeActions, resp.SafeActions...)

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Submitter = (*Gateway)(nil)
