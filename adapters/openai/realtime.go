package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIBaseURL = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-realtime-preview"
	defaultVoice      = "shimmer"
)

// RealtimeSessions mints short-lived realtime sessions against the
// OpenAI REST API. The server API key stays here; clients only ever see
// the ephemeral client secret.
type RealtimeSessions struct {
	apiKey     string
	apiBaseURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// MintRequest configures one ephemeral session.
type MintRequest struct {
	Model        string
	Voice        string
	Instructions string
}

// ClientSecret is the ephemeral credential handed back to the caller.
type ClientSecret struct {
	Value     string
	ExpiresAt time.Time
	BaseURL   string
}

// NewRealtimeSessions creates a session minter for the given API key
func NewRealtimeSessions(apiKey, apiBaseURL string, logger *zap.Logger) (*RealtimeSessions, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	return &RealtimeSessions{
		apiKey:     apiKey,
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

// Mint creates one ephemeral realtime session
func (r *RealtimeSessions) Mint(ctx context.Context, req MintRequest) (*ClientSecret, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}

	payload := map[string]interface{}{
		"model": model,
		"voice": voice,
	}
	if req.Instructions != "" {
		payload["instructions"] = req.Instructions
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := r.apiBaseURL + "/realtime/sessions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		r.logger.Error("OpenAI API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("realtime session request failed with status %d", resp.StatusCode)
	}

	var decoded struct {
		ClientSecret struct {
			Value     string `json:"value"`
			ExpiresAt int64  `json:"expires_at"`
		} `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.ClientSecret.Value == "" {
		return nil, fmt.Errorf("response carried no client secret")
	}

	r.logger.Info("Minted realtime session", zap.String("model", model))
	return &ClientSecret{
		Value:     decoded.ClientSecret.Value,
		ExpiresAt: time.Unix(decoded.ClientSecret.ExpiresAt, 0),
		BaseURL:   r.apiBaseURL,
	}, nil
}
