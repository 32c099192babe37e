package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/zinohome/cozychat-voice/domain/entities"
	"github.com/zinohome/cozychat-voice/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTimeoutSeconds = 15

	// Sessions are titled from the opening exchange only; a handful of
	// messages is plenty of signal for a short label.
	maxTitleMessages = 6
	maxTitleLength   = 60
)

const titlePrompt = `Write a short title (at most five words) summarizing this conversation. Reply with the title only, no quotes, no punctuation at the end.

Conversation:
%s`

// GeminiTitler generates session titles with Google's Gemini API
type GeminiTitler struct {
	client         *genai.Client
	logger         *zap.Logger
	model          string
	timeoutSeconds int
}

// Ensure GeminiTitler implements the SessionTitler interface
var _ repositories.SessionTitler = (*GeminiTitler)(nil)

// NewGeminiTitler creates a new Gemini-backed session titler
func NewGeminiTitler(logger *zap.Logger) (*GeminiTitler, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiTitler{
		client:         client,
		logger:         logger,
		model:          defaultModel,
		timeoutSeconds: defaultTimeoutSeconds,
	}, nil
}

// GenerateTitle implements repositories.SessionTitler
func (g *GeminiTitler) GenerateTitle(ctx context.Context, transcript []entities.Message) (string, error) {
	if len(transcript) == 0 {
		return "", fmt.Errorf("transcript is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeoutSeconds)*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(titlePrompt, formatTranscript(transcript))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := sanitizeTitle(resp.Text())
	if title == "" {
		return "", fmt.Errorf("model returned an empty title")
	}

	g.logger.Debug("Generated session title", zap.String("title", title))
	return title, nil
}

func formatTranscript(transcript []entities.Message) string {
	if len(transcript) > maxTitleMessages {
		transcript = transcript[:maxTitleMessages]
	}

	var b strings.Builder
	for _, message := range transcript {
		speaker := "User"
		if message.Role == entities.MessageRoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, message.Content)
	}
	return b.String()
}

func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimRight(title, ".!")
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}
