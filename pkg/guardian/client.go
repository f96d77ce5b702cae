// Package guardian provides a client for the Aegis scoring service.
package guardian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	// PathAnalyzeImage scores a screenshot uploaded as multipart form data.
	PathAnalyzeImage = "/analyze-image"
	// PathVoiceGuardian scores a spoken narrative transcript.
	PathVoiceGuardian = "/voice-guardian"
	// PathHealth is the liveness probe.
	PathHealth = "/health"

	defaultBaseURL = "http://localhost:8000"
	fileField      = "file"
)

// ErrDecode is returned when a 2xx response body is not a JSON verdict.
var ErrDecode = eris.New("guardian: decode response")

// Client defines the scoring service operations.
type Client interface {
	// AnalyzeImage uploads an image and returns the raw verdict.
	AnalyzeImage(ctx context.Context, img ImageUpload) (*AnalysisResponse, error)
	// VoiceGuardian submits a finalized transcript and returns the raw verdict.
	VoiceGuardian(ctx context.Context, transcript string) (*AnalysisResponse, error)
	// Health probes the service.
	Health(ctx context.Context) (*HealthResponse, error)
}

// ImageUpload is the file sent in the multipart body.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// VoiceRequest is the JSON body for POST /voice-guardian.
type VoiceRequest struct {
	Transcript string `json:"transcript"`
}

// AnalysisResponse is the wire shape shared by both scoring endpoints. Every
// field is optional on the wire; validation happens in the caller.
type AnalysisResponse struct {
	RiskLevel          string    `json:"risk_level"`
	Confidence         *float64  `json:"confidence,omitempty"`
	RedFlags           []RedFlag `json:"red_flags,omitempty"`
	OneSentenceWarning string    `json:"one_sentence_warning"`
	SafeActions        []string  `json:"safe_actions,omitempty"`
}

// RedFlag is a single detected pattern.
type RedFlag struct {
	Type     string `json:"type"`
	Evidence string `json:"evidence"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("guardian: %s unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a scoring service client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) AnalyzeImage(ctx context.Context, img ImageUpload) (*AnalysisResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, filename))
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, eris.Wrap(err, "guardian: create form file")
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, eris.Wrap(err, "guardian: write form file")
	}
	if err := writer.Close(); err != nil {
		return nil, eris.Wrap(err, "guardian: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathAnalyzeImage, &buf)
	if err != nil {
		return nil, eris.Wrap(err, "guardian: create image request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.doAnalysis(req, PathAnalyzeImage)
}

func (c *httpClient) VoiceGuardian(ctx context.Context, transcript string) (*AnalysisResponse, error) {
	body, err := json.Marshal(VoiceRequest{Transcript: transcript})
	if err != nil {
		return nil, eris.Wrap(err, "guardian: marshal voice request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathVoiceGuardian, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "guardian: create voice request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doAnalysis(req, PathVoiceGuardian)
}

func (c *httpClient) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return nil, eris.Wrap(err, "guardian: create health request")
	}

	body, err := c.do(req, PathHealth)
	if err != nil {
		return nil, err
	}

	var result HealthResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrapf(ErrDecode, "%s: %v", PathHealth, err)
	}
	return &result, nil
}

// doAnalysis issues exactly one request. Retries are the caller's decision.
func (c *httpClient) doAnalysis(req *http.Request, endpoint string) (*AnalysisResponse, error) {
	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}

	var result AnalysisResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrapf(ErrDecode, "%s: %v", endpoint, err)
	}
	return &result, nil
}

func (c *httpClient) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "guardian: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "guardian: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
