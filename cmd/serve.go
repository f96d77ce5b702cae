package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/trunghafromvietnam/aegis-share/internal/capture"
	"github.com/trunghafromvietnam/aegis-share/internal/device"
	"github.com/trunghafromvietnam/aegis-share/internal/model"
	"github.com/trunghafromvietnam/aegis-share/internal/session"
)

const maxUploadBytes = 20 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis session over HTTP for a browser UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		voice := device.NewPushRecognizer()
		env := initApp(newGuardianClient(), hostCaps{
			Recognizer: voice,
			Synth:      device.NewConsoleSynthesizer(cmd.ErrOrStderr()),
		}, model.ModalityImage)
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSec), cfg.Server.Burst)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, voice, limiter),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		return g.Wait()
	},
}

// buildRouter exposes the session to a browser UI.
func buildRouter(env *appEnv, voice *device.PushRecognizer, limiter *rate.Limiter) http.Handler {
	h := &sessionHandler{env: env, voice: voice}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(limiter))
		r.Get("/state", h.state)
		r.Put("/modality", h.setModality)
		r.Post("/image", h.uploadImage)
		r.Delete("/image", h.clearImage)
		r.Post("/analyze", h.analyze)
		r.Post("/voice/start", h.startVoice)
		r.Post("/voice/transcript", h.transcript)
		r.Post("/voice/stop", h.stopVoice)
		r.Post("/replay", h.replay)
		r.Post("/export", h.exportCard)
	})
	return r
}

type sessionHandler struct {
	env   *appEnv
	voice *device.PushRecognizer
}

func (h *sessionHandler) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.env.State())
}

func (h *sessionHandler) setModality(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Modality string `json:"modality"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	m, ok := model.ParseModality(req.Modality)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("modality must be image or voice"))
		return
	}
	if err := h.env.Session.SetModality(m); err != nil {
		writeError(w, err)
		return
	}
	h.state(w, r)
}

func (h *sessionHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("could not read upload"))
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("empty file"))
		return
	}

	if err := h.env.Images.Select(&capture.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}); err != nil {
		writeError(w, err)
		return
	}
	h.state(w, r)
}

func (h *sessionHandler) clearImage(w http.ResponseWriter, r *http.Request) {
	h.env.Images.Clear()
	h.state(w, r)
}

// analyze starts an analysis. With ?wait=true it answers once the outcome
// is committed; otherwise it answers 202 and the UI polls /api/state.
func (h *sessionHandler) analyze(w http.ResponseWriter, r *http.Request) {
	p, err := h.env.Session.BeginAnalysis(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, h.env.State())
		return
	}

	if _, err := p.Wait(r.Context()); err != nil && errors.Is(err, r.Context().Err()) {
		// Client went away; the analysis carries on.
		return
	}
	h.state(w, r)
}

func (h *sessionHandler) startVoice(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Voice.StartListening(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.state(w, r)
}

func (h *sessionHandler) transcript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
		Error      string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	var err error
	if req.Error != "" {
		err = h.voice.Fail(eris.New(req.Error))
	} else {
		err = h.voice.Deliver(req.Transcript)
	}
	if err != nil {
		writeJSON(w, http.StatusConflict, errorBody("not listening"))
		return
	}
	writeJSON(w, http.StatusAccepted, h.env.State())
}

func (h *sessionHandler) stopVoice(w http.ResponseWriter, r *http.Request) {
	h.env.Voice.StopListening()
	h.state(w, r)
}

func (h *sessionHandler) replay(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Effects.ReplayVoice(r.Context()); err != nil {
		zap.L().Warn("replay failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("could not replay the warning"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) exportCard(w http.ResponseWriter, r *http.Request) {
	url, err := h.env.Session.ExportCard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if url == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "filename": cfg.Export.Filename})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps a session error to its status code and user message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := model.UserMessage(err)
	switch {
	case eris.Is(err, session.ErrWrongModality):
		status, msg = http.StatusConflict, "Switch to the matching mode first."
	case eris.Is(err, model.ErrAlreadyAnalyzing), eris.Is(err, model.ErrAlreadyCapturing):
		status = http.StatusConflict
	case eris.Is(err, model.ErrNoArtifact):
		status = http.StatusBadRequest
	case eris.Is(err, model.ErrCapabilityUnavailable):
		status = http.StatusNotImplemented
	case eris.Is(err, model.ErrServiceUnavailable), eris.Is(err, model.ErrMalformedResponse):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody(msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorBody("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
