package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sitebuilder/internal/infrastructure/metrics"
)

// Notifier POSTs JSON to a callback URL until it answers 200.
type Notifier struct {
	client       *http.Client
	maxTries     int
	initialDelay time.Duration
}

func NewNotifier(maxTries int, initialDelay, timeout time.Duration) *Notifier {
	if maxTries < 1 {
		maxTries = 1
	}
	return &Notifier{
		client:       &http.Client{Timeout: timeout},
		maxTries:     maxTries,
		initialDelay: initialDelay,
	}
}

// PostWithBackoff makes up to maxTries attempts, doubling the delay
// between them. It returns the body of the first 200 response or the
// last error.
func (n *Notifier) PostWithBackoff(ctx context.Context, url string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	lastErr := errors.New("no attempt made")
	delay := n.initialDelay
	for attempt := 1; attempt <= n.maxTries; attempt++ {
		body, err := n.post(ctx, url, data)
		if err == nil {
			metrics.IncNotification("delivered")
			return body, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt, err)

		if attempt == n.maxTries {
			break
		}
		select {
		case <-ctx.Done():
			metrics.IncNotification("canceled")
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	metrics.IncNotification("failed")
	return "", lastErr
}

func (n *Notifier) post(ctx context.Context, url string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}
