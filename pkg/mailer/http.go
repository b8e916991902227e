// Package mailer delivers transactional email through an HTTP JSON
// delivery provider.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dripkit/dripkit/pkg/protocol"
)

// HTTPMailer sends through a SparkPost-style transmissions endpoint.
type HTTPMailer struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

var _ protocol.Mailer = (*HTTPMailer)(nil)

func NewHTTPMailer(apiURL, apiKey string) *HTTPMailer {
	return &HTTPMailer{
		apiKey:     apiKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *HTTPMailer) Send(ctx context.Context, req protocol.SendRequest) (string, error) {
	payload := map[string]any{
		"recipients": []map[string]any{
			{"address": map[string]string{"email": req.To}},
		},
		"content": map[string]any{
			"from": map[string]string{
				"name":  req.FromName,
				"email": req.FromEmail,
			},
			"subject": req.Subject,
			"html":    req.HTML,
			"text":    req.Text,
		},
		"options": map[string]any{
			"open_tracking":  true,
			"click_tracking": true,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode transmission: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build transmission request: %w", err)
	}

	request.Header.Set("Authorization", m.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := m.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("send transmission: %w", err)
	}

	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("delivery provider error: status %d", response.StatusCode)
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}

	err = json.NewDecoder(response.Body).Decode(&result)
	if err != nil {
		return "", fmt.Errorf("decode transmission response: %w", err)
	}

	return result.Results.ID, nil
}
