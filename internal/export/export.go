// Package export renders a committed verdict into a shareable PNG card.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
)

// Defaults for the exported card.
const (
	DefaultFilename = "aegis-safe-card.png"
	DefaultSettle   = 100 * time.Millisecond
	DefaultScale    = 2
)

// Saver stores an exported card where the user can pick it up.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) error
}

// FileSaver writes cards into a directory.
type FileSaver struct {
	Dir string
}

// Save writes data to Dir/name, creating Dir when needed.
func (s FileSaver) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "export: save")
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithSaver sets where rendered cards are saved. Nil disables saving.
func WithSaver(s Saver) Option {
	return func(e *Exporter) { e.saver = s }
}

// WithFilename sets the saved file name.
func WithFilename(name string) Option {
	return func(e *Exporter) {
		if name != "" {
			e.filename = name
		}
	}
}

// WithSettle sets the delay before the card is snapshotted.
func WithSettle(d time.Duration) Option {
	return func(e *Exporter) {
		if d >= 0 {
			e.settle = d
		}
	}
}

// WithScale sets the pixel density factor.
func WithScale(n int) Option {
	return func(e *Exporter) {
		if n >= 1 {
			e.scale = n
		}
	}
}

// WithClock overrides the time printed on the card.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// Exporter renders verdict cards.
type Exporter struct {
	saver    Saver
	filename string
	settle   time.Duration
	scale    int
	now      func() time.Time
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		filename: DefaultFilename,
		settle:   DefaultSettle,
		scale:    DefaultScale,
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export renders r and returns it as a PNG data URL, saving the file when a
// Saver is configured. Errors are classified as ExportFailed.
func (e *Exporter) Export(ctx context.Context, r *model.RiskResult) (string, error) {
	if r == nil {
		return "", eris.Wrap(model.ErrExportFailed, "export: no verdict")
	}

	if e.settle > 0 {
		t := time.NewTimer(e.settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", eris.Wrapf(model.ErrExportFailed, "export: %v", ctx.Err())
		case <-t.C:
		}
	}

	data, err := e.Render(r)
	if err != nil {
		return "", err
	}

	if e.saver != nil {
		if err := e.saver.Save(ctx, e.filename, data); err != nil {
			return "", eris.Wrapf(model.ErrExportFailed, "export: %v", err)
		}
	}

	zap.L().Info("export: card rendered",
		zap.String("verdict_id", string(r.ID)),
		zap.String("file", e.filename),
		zap.Int("bytes", len(data)),
		zap.Bool("saved", e.saver != nil),
	)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Render draws r and encodes it as PNG.
func (e *Exporter) Render(r *model.RiskResult) ([]byte, error) {
	img := upscale(renderCard(r, e.now()), e.scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrapf(model.ErrExportFailed, "export: encode png: %v", err)
	}
	return buf.Bytes(), nil
}
