// Package capture contains the two input adapters of the analysis session:
// image selection and live speech capture.
package capture

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/trunghafromvietnam/aegis-share/internal/model"
)

// File is any file-like blob offered by the host.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFile loads a file from disk.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "capture: read %s", path)
	}
	return &File{Name: filepath.Base(path), Data: data}, nil
}

// ImageSink is the part of the session the image adapter drives.
type ImageSink interface {
	AcceptImage(img *model.ImageArtifact) error
	ClearArtifact()
}

// ImageAdapter turns selected or dropped files into image artifacts. It does
// not validate type or size; the scoring service owns that.
type ImageAdapter struct {
	sink ImageSink
}

// NewImageAdapter creates an adapter feeding sink.
func NewImageAdapter(sink ImageSink) *ImageAdapter {
	return &ImageAdapter{sink: sink}
}

// Select offers a file picked by the user. A nil or empty file is ignored.
func (a *ImageAdapter) Select(f *File) error {
	return a.accept(f, "select")
}

// Drop offers a file dropped onto the capture area. A nil or empty file is
// ignored.
func (a *ImageAdapter) Drop(f *File) error {
	return a.accept(f, "drop")
}

// Clear releases the artifact and its preview and clears the verdict.
func (a *ImageAdapter) Clear() {
	a.sink.ClearArtifact()
}

func (a *ImageAdapter) accept(f *File, via string) error {
	if f == nil || len(f.Data) == 0 {
		return nil
	}

	img := NewImageArtifact(f)
	if err := a.sink.AcceptImage(img); err != nil {
		return eris.Wrapf(err, "capture: %s image", via)
	}

	zap.L().Debug("capture: image accepted",
		zap.String("via", via),
		zap.String("file", img.Filename),
		zap.String("content_type", img.ContentType),
		zap.Int("bytes", len(img.Data)),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
	)
	return nil
}

// NewImageArtifact builds an artifact with a fresh identity and a locally
// derived preview. The blob is copied so later edits by the host cannot
// change an issued request.
func NewImageArtifact(f *File) *model.ImageArtifact {
	data := append([]byte(nil), f.Data...)

	contentType := f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	img := &model.ImageArtifact{
		ID:          model.NewArtifactID(),
		Filename:    f.Name,
		ContentType: contentType,
		Data:        data,
		PreviewURL:  DataURL(contentType, data),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	return img
}

// DataURL encodes data as a base64 data: URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
