package splitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// GroqSplitter calls the Groq Chat Completions API (OpenAI-compatible),
// ported from the teacher's internal/llmClient.GroqClient onto the
// Splitter interface.
type GroqSplitter struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewGroqSplitter(apiKey, model string) *GroqSplitter {
	return &GroqSplitter{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.groq.com/openai/v1/chat/completions",
	}
}

func (g *GroqSplitter) Name() string { return "groq:" + g.model }
func (g *GroqSplitter) Close() error { return nil }

type groqChatReq struct {
	Model          string            `json:"model"`
	Messages       []groqMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code     string `json:"code"`
	} `json:"error"`
}

func (g *GroqSplitter) Split(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(toWireRequest(req))
	if err != nil {
		return Response{}, err
	}
	full := splitterPrompt + "\n\n[INPUT JSON]\n" + string(body)

	reqBody := groqChatReq{
		Model:          g.model,
		Messages:       []groqMessage{{Role: "user", Content: full}},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(b))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	httpResp, err := g.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	var out groqChatResp
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return Response{}, ErrInvalidJSON
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := httpResp.Status
		if out.Error != nil {
			msg = out.Error.Message
			if out.Error.Code == "context_length_exceeded" || strings.Contains(strings.ToLower(out.Error.Code), "invalid") {
				return Response{}, NewPermanentError(errors.New(msg))
			}
		}
		return Response{}, errors.New("groq: unexpected status " + msg)
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return Response{}, ErrInvalidJSON
	}
	return fromWireResponse(json.RawMessage(out.Choices[0].Message.Content))
}
