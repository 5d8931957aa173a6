package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wonny/stockgame/pkg/config"
	"github.com/wonny/stockgame/pkg/httputil"
)

// OpenRouterClient calls {BaseURL}/chat/completions
type OpenRouterClient struct {
	http    *httputil.Client
	baseURL string
	apiKey  string
	model   string
	referer string
	title   string
}

func NewOpenRouterClient(cfg config.LLMConfig, httpClient *httputil.Client) *OpenRouterClient {
	return &OpenRouterClient{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		referer: cfg.Referer,
		title:   cfg.Title,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends prompt as a single user message
func (c *OpenRouterClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	headers := httputil.Header{"Authorization": "Bearer " + c.apiKey}
	if c.referer != "" {
		headers["HTTP-Referer"] = c.referer
	}
	if c.title != "" {
		headers["X-Title"] = c.title
	}

	resp, err := c.http.PostJSON(ctx, c.baseURL+"/chat/completions", req, headers)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}

	if out.Error != nil && out.Error.Message != "" {
		return "", fmt.Errorf("chat completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}
