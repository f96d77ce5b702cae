package model

import (
	"strings"

	"github.com/google/uuid"
)

// Modality selects which capture channel is active.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVoice Modality = "voice"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityImage || m == ModalityVoice
}

// ParseModality accepts "image" or "voice" in any case.
func ParseModality(s string) (Modality, bool) {
	m := Modality(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

// ArtifactID identifies one capture artifact. Replacing an artifact always
// mints a new ID, even for identical bytes.
type ArtifactID string

// Artifact is the payload a capture adapter produces. It is either an
// *ImageArtifact or a *VoiceArtifact.
type Artifact interface {
	ArtifactID() ArtifactID
	Modality() Modality
}

// ImageArtifact is a selected or dropped image file.
type ImageArtifact struct {
	ID          ArtifactID
	Filename    string
	ContentType string
	Data        []byte
	// PreviewURL is a locally derived data: URL of Data.
	PreviewURL string
	// Width and Height are zero when the blob did not decode as an image.
	Width  int
	Height int
}

func (a *ImageArtifact) ArtifactID() ArtifactID { return a.ID }
func (a *ImageArtifact) Modality() Modality     { return ModalityImage }

// VoiceArtifact is a finalized transcript.
type VoiceArtifact struct {
	ID         ArtifactID
	Transcript string
	Locale     string
}

func (a *VoiceArtifact) ArtifactID() ArtifactID { return a.ID }
func (a *VoiceArtifact) Modality() Modality     { return ModalityVoice }

// NewArtifactID returns a fresh artifact identity.
func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.NewString())
}
