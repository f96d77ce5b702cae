package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

type instantSubmitter struct {
	result *model.RiskResult
	err    error
	calls  []model.Artifact
}

func (f *instantSubmitter) Submit(_ context.Context, a model.Artifact) (*model.RiskResult, error) {
	f.calls = append(f.calls, a)
	return f.result, f.err
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageAdapter_SelectDerivesPreview(t *testing.T) {
	s := session.New(&instantSubmitter{})
	a := NewImageAdapter(s)

	data := encodePNG(t, 4, 3)
	require.NoError(t, a.Select(&File{Name: "loan.png", Data: data}))

	snap := s.Snapshot()
	img, ok := snap.Artifact.(*model.ImageArtifact)
	require.True(t, ok)
	assert.Equal(t, "loan.png", img.Filename)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.True(t, strings.HasPrefix(img.PreviewURL, "data:image/png;base64,"))
	assert.NotEmpty(t, img.ID)
	assert.True(t, snap.Ready())
}

func TestImageAdapter_AcceptsUndecodableBlob(t *testing.T) {
	s := session.New(&instantSubmitter{})
	a := NewImageAdapter(s)

	require.NoError(t, a.Drop(&File{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}))

	img := s.Snapshot().Artifact.(*model.ImageArtifact)
	assert.Equal(t, "text/plain", img.ContentType)
	assert.Zero(t, img.Width)
	assert.Zero(t, img.Height)
}

func TestImageAdapter_IgnoresNilAndEmpty(t *testing.T) {
	s := session.New(&instantSubmitter{})
	a := NewImageAdapter(s)
	require.NoError(t, a.Select(&File{Name: "a.png", Data: []byte("x")}))
	before := s.Snapshot().Artifact.ArtifactID()

	require.NoError(t, a.Select(nil))
	require.NoError(t, a.Drop(&File{Name: "empty.png"}))

	assert.Equal(t, before, s.Snapshot().Artifact.ArtifactID())
}

func TestImageAdapter_ReselectReplacesAndClearsVerdict(t *testing.T) {
	sub := &instantSubmitter{result: &model.RiskResult{Level: model.RiskRed, Warning: "w"}}
	s := session.New(sub)
	a := NewImageAdapter(s)

	require.NoError(t, a.Select(&File{Name: "a.png", Data: []byte("a")}))
	_, err := s.Analyze(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s.Snapshot().LastResult)

	require.NoError(t, a.Select(&File{Name: "b.png", Data: []byte("b")}))

	snap := s.Snapshot()
	assert.Nil(t, snap.LastResult)
	assert.Equal(t, "b.png", snap.Artifact.(*model.ImageArtifact).Filename)
}

func TestImageAdapter_CopiesBlob(t *testing.T) {
	s := session.New(&instantSubmitter{})
	a := NewImageAdapter(s)
	data := []byte("abc")
	require.NoError(t, a.Select(&File{Name: "a.bin", Data: data}))
	data[0] = 'z'

	assert.Equal(t, []byte("abc"), s.Snapshot().Artifact.(*model.ImageArtifact).Data)
}

func TestImageAdapter_Clear(t *testing.T) {
	s := session.New(&instantSubmitter{})
	a := NewImageAdapter(s)
	require.NoError(t, a.Select(&File{Name: "a.png", Data: []byte("a")}))

	a.Clear()

	assert.Nil(t, s.Snapshot().Artifact)
}

func TestImageAdapter_WrongModality(t *testing.T) {
	s := session.New(&instantSubmitter{}, session.WithModality(model.ModalityVoice))
	a := NewImageAdapter(s)

	err := a.Select(&File{Name: "a.png", Data: []byte("a")})
	assert.ErrorIs(t, err, session.ErrWrongModality)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shot.png", f.Name)
	assert.Equal(t, []byte("data"), f.Data)

	_, err = ReadFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
