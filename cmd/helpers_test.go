package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trunghafromvietnam/aegis-share/internal/config"
	"github.com/trunghafromvietnam/aegis-share/pkg/guardian"
)

const redVerdictJSON = `{"risk_level":"RED","confidence":0.91,"red_flags":[{"type":"HIDDEN_APR","evidence":"APR 400%"}],"one_sentence_warning":"Do not pay this lender.","safe_actions":["Uninstall the app","Report it"]}`

// fakeCore stands in for Aegis Core. status overrides the response code of
// the scoring endpoints when non-zero.
type fakeCore struct {
	status int32
	calls  int32
}

func (c *fakeCore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case guardian.PathHealth:
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	case guardian.PathAnalyzeImage, guardian.PathVoiceGuardian:
		atomic.AddInt32(&c.calls, 1)
		if s := atomic.LoadInt32(&c.status); s != 0 {
			w.WriteHeader(int(s))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(redVerdictJSON))
	default:
		http.NotFound(w, r)
	}
}

// withTestConfig installs a default configuration pointing at baseURL.
func withTestConfig(t *testing.T, baseURL string) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		API:     config.APIConfig{BaseURL: baseURL, TimeoutSecs: 5},
		Voice:   config.VoiceConfig{Locale: "en-US", Rate: 0.95},
		Haptics: config.HapticsConfig{Enabled: true, Pattern: []int{100, 50, 100, 50, 500}},
		Counter: config.CounterConfig{Baseline: 1241},
		Export:  config.ExportConfig{Dir: t.TempDir(), Filename: "aegis-safe-card.png", SettleMS: 0, Scale: 1},
		Server:  config.ServerConfig{Port: 8080, RatePerSec: 100, Burst: 100},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
	t.Cleanup(func() { cfg = prev })
}

func startCore(t *testing.T) (*fakeCore, *httptest.Server) {
	t.Helper()
	core := &fakeCore{}
	srv := httptest.NewServer(core)
	t.Cleanup(srv.Close)
	withTestConfig(t, srv.URL)
	return core, srv
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
