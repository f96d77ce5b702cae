package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RiskLevel is the severity of a verdict.
type RiskLevel string

const (
	RiskRed    RiskLevel = "RED"
	RiskYellow RiskLevel = "YELLOW"
	RiskGreen  RiskLevel = "GREEN"
)

// Valid reports whether l is one of the enumerated levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskRed, RiskYellow, RiskGreen:
		return true
	default:
		return false
	}
}

// Severity orders levels: RED > YELLOW > GREEN. Unknown levels rank 0.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskRed:
		return 3
	case RiskYellow:
		return 2
	case RiskGreen:
		return 1
	default:
		return 0
	}
}

// RedFlag is a single piece of evidence behind a verdict.
type RedFlag struct {
	Kind     string `json:"type" yaml:"type"`
	Evidence string `json:"evidence" yaml:"evidence"`
}

// VerdictID identifies one committed verdict. Two commits of identical
// content still get distinct IDs.
type VerdictID string

// RiskResult is the normalized verdict returned by the scoring service.
type RiskResult struct {
	ID          VerdictID `json:"-" yaml:"-"`
	Level       RiskLevel `json:"risk_level" yaml:"risk_level"`
	Confidence  *float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	RedFlags    []RedFlag `json:"red_flags" yaml:"red_flags"`
	Warning     string    `json:"one_sentence_warning" yaml:"one_sentence_warning"`
	SafeActions []string  `json:"safe_actions" yaml:"safe_actions"`
}

// NewVerdictID returns a fresh verdict identity.
func NewVerdictID() VerdictID {
	return VerdictID(uuid.NewString())
}

// ClampedConfidence returns the confidence clamped to [0,1] and whether one
// was reported at all.
func (r *RiskResult) ClampedConfidence() (float64, bool) {
	if r == nil || r.Confidence == nil {
		return 0, false
	}
	return Clamp01(*r.Confidence), true
}

// Validate checks the invariants every verdict must satisfy. The returned
// error wraps ErrMalformedResponse.
func (r *RiskResult) Validate() error {
	if r == nil {
		return eris.Wrap(ErrMalformedResponse, "empty verdict")
	}
	if !r.Level.Valid() {
		return eris.Wrapf(ErrMalformedResponse, "unknown risk_level %q", string(r.Level))
	}
	if strings.TrimSpace(r.Warning) == "" {
		return eris.Wrap(ErrMalformedResponse, "missing one_sentence_warning")
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias session-owned slices.
func (r *RiskResult) Clone() *RiskResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Confidence != nil {
		c := *r.Confidence
		out.Confidence = &c
	}
	out.RedFlags = append([]RedFlag(nil), r.RedFlags...)
	out.SafeActions = append([]string(nil), r.SafeActions...)
	return &out
}

// Clamp01 limits v to the closed interval [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
