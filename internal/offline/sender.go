package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSender posts submissions to the compliance API.
type HTTPSender struct {
	BaseURL   string
	AuthToken string
	Client    *http.Client
}

func NewHTTPSender(baseURL, authToken string) *HTTPSender {
	return &HTTPSender{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		AuthToken: authToken,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the payload with its idempotency key. Client errors other than
// 408 and 429 are permanent.
func (h *HTTPSender) Send(ctx context.Context, s Submission) error {
	path, ok := s.Kind.Path()
	if !ok {
		return fmt.Errorf("%w: %w %q", ErrPermanent, ErrUnknownKind, s.Kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+path, bytes.NewReader(s.Payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", s.IdempotencyKey)
	if h.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.AuthToken)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if isPermanentStatus(resp.StatusCode) {
		return fmt.Errorf("%w: %w", ErrPermanent, statusErr)
	}
	return statusErr
}

func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
