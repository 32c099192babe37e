package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/usecase"
)

// Client talks to the CozyChat gateway on behalf of the desktop client.
// It implements usecase.CredentialIssuer so the voice call service can
// fetch ephemeral realtime credentials without knowing about HTTP.
type Client struct {
	baseURL       string
	token         string
	personalityID string
	httpClient    *http.Client
	logger        *zap.Logger
}

// Ensure Client implements the CredentialIssuer interface
var _ usecase.CredentialIssuer = (*Client)(nil)

func NewClient(baseURL, token, personalityID string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       baseURL,
		token:         token,
		personalityID: personalityID,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
	}
}

// IssueRealtimeCredentials implements usecase.CredentialIssuer
func (c *Client) IssueRealtimeCredentials(ctx context.Context) (usecase.RealtimeCredentials, error) {
	body, err := json.Marshal(map[string]string{"personality_id": c.personalityID})
	if err != nil {
		return usecase.RealtimeCredentials{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/v1/realtime/sessions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return usecase.RealtimeCredentials{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return usecase.RealtimeCredentials{}, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("Gateway refused realtime session",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return usecase.RealtimeCredentials{}, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var decoded struct {
		ClientSecret string `json:"client_secret"`
		BaseURL      string `json:"base_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return usecase.RealtimeCredentials{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.ClientSecret == "" {
		return usecase.RealtimeCredentials{}, fmt.Errorf("gateway response carried no client secret")
	}

	return usecase.RealtimeCredentials{
		BaseURL:      decoded.BaseURL,
		ClientSecret: decoded.ClientSecret,
	}, nil
}
