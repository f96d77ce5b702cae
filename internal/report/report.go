// Package report renders verdicts and session state for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

// NoneDetected is shown when a verdict lists no red flags.
const NoneDetected = "None detected."

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// Title is the headline for a risk level.
func Title(level model.RiskLevel) string {
	switch level {
	case model.RiskRed:
		return "CRITICAL RISK"
	case model.RiskYellow:
		return "CAUTION ADVISED"
	case model.RiskGreen:
		return "SAFE TO PROCEED"
	default:
		return string(level)
	}
}

// ConfidencePercent renders confidence as a whole percent. A missing value
// shows as 0.
func ConfidencePercent(r *model.RiskResult) int {
	c, ok := r.ClampedConfidence()
	if !ok {
		return 0
	}
	return int(math.Round(c * 100))
}

// ThreatLines formats each red flag as "kind: evidence".
func ThreatLines(r *model.RiskResult) []string {
	lines := make([]string, 0, len(r.RedFlags))
	for _, f := range r.RedFlags {
		switch {
		case f.Evidence == "":
			lines = append(lines, f.Kind)
		case f.Kind == "":
			lines = append(lines, f.Evidence)
		default:
			lines = append(lines, f.Kind+": "+f.Evidence)
		}
	}
	return lines
}

// Counter formats the threats-blocked display for a locale, e.g.
// "1,242 threats blocked".
func Counter(locale string, n int64) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return message.NewPrinter(tag).Sprintf("%d threats blocked", n)
}

// Card is the presentation of one verdict.
type Card struct {
	VerdictID         string          `json:"verdict_id,omitempty" yaml:"verdict_id,omitempty"`
	Level             model.RiskLevel `json:"risk_level" yaml:"risk_level"`
	Title             string          `json:"title" yaml:"title"`
	ConfidencePercent int             `json:"confidence_percent" yaml:"confidence_percent"`
	Warning           string          `json:"one_sentence_warning" yaml:"one_sentence_warning"`
	Threats           []string        `json:"threats" yaml:"threats"`
	SafeActions       []string        `json:"safe_actions" yaml:"safe_actions"`
}

// NewCard builds the presentation of r. It returns nil for a nil verdict.
func NewCard(r *model.RiskResult) *Card {
	if r == nil {
		return nil
	}
	actions := append([]string{}, r.SafeActions...)
	return &Card{
		VerdictID:         string(r.ID),
		Level:             r.Level,
		Title:             Title(r.Level),
		ConfidencePercent: ConfidencePercent(r),
		Warning:           r.Warning,
		Threats:           ThreatLines(r),
		SafeActions:       actions,
	}
}

// State is the presentation of a session snapshot.
type State struct {
	Modality       model.Modality `json:"modality" yaml:"modality"`
	Status         session.Status `json:"status" yaml:"status"`
	Ready          bool           `json:"ready" yaml:"ready"`
	Artifact       *Artifact      `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Error          string         `json:"error,omitempty" yaml:"error,omitempty"`
	Verdict        *Card          `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	ExportedURL    string         `json:"exported_url,omitempty" yaml:"exported_url,omitempty"`
	ThreatsBlocked string         `json:"threats_blocked,omitempty" yaml:"threats_blocked,omitempty"`
}

// Artifact summarizes the staged input without its payload.
type Artifact struct {
	ID         string `json:"id" yaml:"id"`
	Modality   string `json:"modality" yaml:"modality"`
	Filename   string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Bytes      int    `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Width      int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int    `json:"height,omitempty" yaml:"height,omitempty"`
	PreviewURL string `json:"preview_url,omitempty" yaml:"-"`
	Transcript string `json:"transcript,omitempty" yaml:"transcript,omitempty"`
}

// NewState builds the presentation of a snapshot. counter may be empty.
func NewState(s session.Snapshot, counter string) State {
	st := State{
		Modality:       s.Modality,
		Status:         s.Status,
		Ready:          s.Ready(),
		Error:          s.ErrorMessage(),
		Verdict:        NewCard(s.LastResult),
		ExportedURL:    s.ExportedURL,
		ThreatsBlocked: counter,
	}
	switch a := s.Artifact.(type) {
	case *model.ImageArtifact:
		st.Artifact = &Artifact{
			ID:         string(a.ID),
			Modality:   string(model.ModalityImage),
			Filename:   a.Filename,
			Bytes:      len(a.Data),
			Width:      a.Width,
			Height:     a.Height,
			PreviewURL: a.PreviewURL,
		}
	case *model.VoiceArtifact:
		st.Artifact = &Artifact{
			ID:         string(a.ID),
			Modality:   string(model.ModalityVoice),
			Transcript: a.Transcript,
		}
	}
	return st
}

// Write encodes v in the given format. Text is supported for *Card and
// State only.
func Write(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: encode yaml")
	}

	switch x := v.(type) {
	case *Card:
		return writeCardText(w, x)
	case State:
		return writeStateText(w, x)
	default:
		return eris.Errorf("report: no text form for %T", v)
	}
}

func writeCardText(w io.Writer, c *Card) error {
	var b strings.Builder
	if c == nil {
		b.WriteString("No verdict.\n")
		_, err := io.WriteString(w, b.String())
		return eris.Wrap(err, "report: write")
	}

	fmt.Fprintf(&b, "%s  (%s RISK, confidence %d%%)\n", c.Title, c.Level, c.ConfidencePercent)
	fmt.Fprintf(&b, "%s\n\n", c.Warning)

	b.WriteString("Red flags:\n")
	if len(c.Threats) == 0 {
		fmt.Fprintf(&b, "  %s\n", NoneDetected)
	}
	for _, t := range c.Threats {
		fmt.Fprintf(&b, "  - %s\n", t)
	}

	if len(c.SafeActions) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for _, a := range c.SafeActions {
			fmt.Fprintf(&b, "  -> %s\n", a)
		}
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "report: write")
}

func writeStateText(w io.Writer, s State) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s  Status: %s\n", s.Modality, s.Status)
	if s.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}
	if s.ExportedURL != "" {
		b.WriteString("Card exported.\n")
	}
	if s.ThreatsBlocked != "" {
		fmt.Fprintf(&b, "%s\n", s.ThreatsBlocked)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "report: write")
	}
	if s.Verdict == nil {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return eris.Wrap(err, "report: write")
	}
	return writeCardText(w, s.Verdict)
}
