package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	httpclient "social-support-wizard/internal/common/http"
)

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  *httpclient.Client
}

func NewChatClient(baseURL, apiKey, model string, timeout time.Duration) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		// deadline comes from the per-request context
		client: httpclient.NewClient(0),
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
}

func (c *ChatClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	prompt, err := BuildPrompt(req.Field, req.CurrentValue)
	if err != nil {
		return "", err
	}

	ctx, cancel := withDeadline(ctx, req, c.timeout)
	defer cancel()

	var resp chatResponse
	err = c.client.PostJSON(ctx, c.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey},
		chatRequest{Model: c.model, Messages: []chatMessage{{Role: "user", Content: prompt}}},
		&resp,
	)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return "", &StatusError{StatusCode: statusErr.StatusCode, Message: upstreamMessage(statusErr.Body)}
		}
		return "", normalize(ctx, err, true)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// upstreamMessage extracts error.message from an OpenAI-style error body.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}
