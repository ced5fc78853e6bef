package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Message is one turn of a tutor conversation.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Completer is the external LLM collaborator. Dispatch, model selection and
// response parsing all live behind this boundary.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// HTTPCompleter forwards conversations to the configured LLM gateway.
type HTTPCompleter struct {
	URL    string
	Key    string
	Client *http.Client
}

func NewHTTPCompleter(url, key string) *HTTPCompleter {
	return &HTTPCompleter{
		URL:    url,
		Key:    key,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.URL == "" {
		return "", errors.New("llm gateway url is not configured")
	}

	body, err := json.Marshal(map[string]interface{}{"messages": messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Key != "" {
		req.Header.Set("Authorization", "Bearer "+c.Key)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm gateway returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm gateway response malformed: %w", err)
	}
	return parsed.Content, nil
}

// Service is the thin tutoring layer over the completer.
type Service struct {
	completer Completer
}

func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// Ask sends the conversation to the tutor and returns its reply as a new
// assistant message.
func (s *Service) Ask(ctx context.Context, history []Message, prompt string) (*Message, error) {
	messages := append(history, Message{
		ID:      uuid.NewString(),
		Role:    "user",
		Content: prompt,
	})

	content, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:      uuid.NewString(),
		Role:    "assistant",
		Content: content,
	}, nil
}
