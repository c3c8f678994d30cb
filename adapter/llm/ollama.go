package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// OllamaLLM is an adapter for a local Ollama server, typically the reasoning
// bridge running next to the orchestrator.
type OllamaLLM struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // max tokens
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// NewOllamaLLM creates a new Ollama adapter. Defaults: model "llama3.1",
// base URL "http://localhost:11434".
func NewOllamaLLM(model, baseURL string) *OllamaLLM {
	if model == "" {
		model = "llama3.1"
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaLLM{
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Model returns the model identifier.
func (o *OllamaLLM) Model() string {
	return o.model
}

// BaseURL returns the server address.
func (o *OllamaLLM) BaseURL() string {
	return o.baseURL
}

// Complete generates a chat completion from Ollama.
func (o *OllamaLLM) Complete(ctx context.Context, messages []*triad.Message, opts ...CallOption) (*triad.Message, error) {
	options := BuildCallOptions(opts...)

	reqBody := ollamaChatRequest{
		Model:    o.model,
		Messages: make([]ollamaMessage, len(messages)),
		Stream:   false,
	}
	for i, msg := range messages {
		role := msg.Role
		if role == "agent" {
			role = "assistant"
		}
		reqBody.Messages[i] = ollamaMessage{Role: role, Content: msg.Content}
	}
	if jsonMode, ok := options.Extra["json_mode"].(bool); ok && jsonMode {
		reqBody.Format = "json"
	}
	if options.Temperature != nil || options.MaxTokens != nil || options.TopP != nil {
		reqBody.Options = &ollamaOptions{}
		if options.Temperature != nil {
			reqBody.Options.Temperature = *options.Temperature
		}
		if options.TopP != nil {
			reqBody.Options.TopP = *options.TopP
		}
		if options.MaxTokens != nil {
			reqBody.Options.NumPredict = *options.MaxTokens
		}
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	response := triad.NewMessage("agent", ollamaResp.Message.Content)
	response.Metadata["model"] = ollamaResp.Model
	if ollamaResp.TotalDuration > 0 {
		response.Metadata["total_duration_ns"] = ollamaResp.TotalDuration
	}
	if ollamaResp.PromptEvalCount > 0 || ollamaResp.EvalCount > 0 {
		response.Metadata["usage"] = usageMetadata(
			ollamaResp.PromptEvalCount,
			ollamaResp.EvalCount,
			ollamaResp.PromptEvalCount+ollamaResp.EvalCount,
		)
	}
	return response, nil
}

// Unwrap returns the underlying *http.Client.
func (o *OllamaLLM) Unwrap() interface{} {
	return o.client
}
