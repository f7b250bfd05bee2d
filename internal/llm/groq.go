package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GroqProvider speaks the OpenAI-compatible chat completions API that
// Groq exposes.
type GroqProvider struct {
	apiKey       string
	baseURL      string
	fastModel    string
	qualityModel string
	client       *http.Client
}

type GroqConfig struct {
	APIKey       string
	BaseURL      string
	FastModel    string
	QualityModel string
}

func NewGroqProvider(cfg GroqConfig) *GroqProvider {
	return &GroqProvider{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		fastModel:    cfg.FastModel,
		qualityModel: cfg.QualityModel,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

var _ Provider = &GroqProvider{}

func (p *GroqProvider) Name() string { return "groq" }

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type groqChatResponse struct {
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
}

func (p *GroqProvider) Complete(ctx context.Context, req Request) (string, error) {
	model := p.fastModel
	if req.Tier == TierQuality {
		model = p.qualityModel
	}

	messages := make([]groqMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, groqMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, groqMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(groqChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("groq request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: p.Name(), StatusCode: res.StatusCode, Message: string(body)}
	}

	var parsed groqChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Message: "no choices in response"}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
