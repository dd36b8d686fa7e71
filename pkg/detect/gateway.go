package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatledger/pkg/logger"
	"chatledger/pkg/models"
)

// ErrImageTooLarge rejects an inline image over the configured cap.
// The check runs locally, before any request is issued.
var ErrImageTooLarge = errors.New("image too large")

// Error reports a failed detection call. Status is the HTTP status the
// server answered with, or 0 when the server was unreachable.
type Error struct {
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("detection service unreachable: %v", e.Cause)
	}
	return fmt.Sprintf("detection service returned %d: %v", e.Status, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Unreachable reports whether the failure was a network error rather
// than a server-side one.
func (e *Error) Unreachable() bool { return e.Status == 0 }

// Gateway is a stateless adapter to the external detection endpoint.
// One POST per Detect call, no retries; retry policy belongs to the
// caller.
type Gateway struct {
	baseURL  string
	client   *http.Client
	maxImage uint64
}

// New builds a gateway for the endpoint at baseURL. maxImage caps the
// accepted inline image payload in bytes (0 means no cap).
func New(baseURL string, timeout time.Duration, maxImage uint64) *Gateway {
	return &Gateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		maxImage: maxImage,
	}
}

type chatRequest struct {
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
}

// Detect posts the message and optional base64 image to the endpoint
// and decodes the reply. Data-URL prefixes on the image are stripped
// before sending. Call failures come back as *Error; an image over the
// size cap is rejected with ErrImageTooLarge without a request.
func (g *Gateway) Detect(ctx context.Context, message, imageBase64 string) (*models.DetectionResult, error) {
	img := stripDataURL(imageBase64)
	if g.maxImage > 0 && uint64(len(img)) > g.maxImage {
		return nil, fmt.Errorf("%w: payload %d bytes, limit %d", ErrImageTooLarge, len(img), g.maxImage)
	}
	body, err := json.Marshal(chatRequest{Message: message, Image: img})
	if err != nil {
		return nil, &Error{Status: 0, Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Status: 0, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		logger.Warn("detection_request_failed", "url", g.baseURL, "error", err)
		return nil, &Error{Status: 0, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("detection_bad_status", "url", g.baseURL, "status", resp.StatusCode)
		return nil, &Error{Status: resp.StatusCode, Cause: fmt.Errorf("%s", strings.TrimSpace(string(snippet)))}
	}

	var out models.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Status: resp.StatusCode, Cause: fmt.Errorf("invalid response body: %w", err)}
	}
	logger.Info("detection_ok", "detections", len(out.Detections), "elapsed_ms", time.Since(start).Milliseconds())
	return &out, nil
}

// HealthCheck is a best-effort liveness probe. Any HTTP answer counts
// as alive; a network failure maps to false. Never returns an error.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/docs", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		logger.Debug("detection_health_failed", "url", g.baseURL, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return true
}

// stripDataURL drops a "data:image/...;base64," prefix when present so
// callers can hand over either bare base64 or a data URL.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
