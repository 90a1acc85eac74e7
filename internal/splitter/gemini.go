package splitter

import (
	"context"
	"encoding/json"

	genai "google.golang.org/genai"
)

// GeminiSplitter is the default Splitter implementation, a thin
// wrapper around the official genai client requesting structured
// JSON output. Grounded on the teacher's internal/llm.GeminiClient.
type GeminiSplitter struct {
	cli   *genai.Client
	model string
}

func NewGeminiSplitter(ctx context.Context, model string) (*GeminiSplitter, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiSplitter{cli: cli, model: model}, nil
}

func (g *GeminiSplitter) Name() string { return "gemini:" + g.model }
func (g *GeminiSplitter) Close() error { return nil }

func (g *GeminiSplitter) Split(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(toWireRequest(req))
	if err != nil {
		return Response{}, err
	}
	prompt := splitterPrompt + "\n\n[INPUT JSON]\n" + string(body)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Response{}, classifyGeminiErr(err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Response{}, ErrInvalidJSON
	}
	raw := json.RawMessage(resp.Candidates[0].Content.Parts[0].Text)
	return fromWireResponse(raw)
}

// splitterPrompt instructs the model to extract integration points
// from the batch's code snippets (spec §4.6 contract).
const splitterPrompt = `You are analyzing source code snippets for external integration points (outgoing calls to other services, incoming handlers exposed to other services). For each snippet, return zero or more connections with their exact line range, a short natural-language description, and a normalized technology_name (e.g. "HTTP/GET", "AMQP", "gRPC"). The code_snippet field in your response must be a byte-exact copy of the lines you are describing. Respond only with the JSON object described by the schema.`

// classifyGeminiErr maps provider errors that cannot succeed on retry
// (e.g. invalid request, context length, auth failure) to
// PermanentError; everything else is left transient.
func classifyGeminiErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{"invalid_argument", "context length", "API key not valid", "PERMISSION_DENIED"} {
		if containsFold(msg, marker) {
			return NewPermanentError(err)
		}
	}
	return err
}
