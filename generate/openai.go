package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	entitle "github.com/xraph/entitle"
)

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxTokens caps one completion.
	DefaultMaxTokens = 800

	serviceName = "openai"
)

// Ensure OpenAI implements Provider.
var _ Provider = (*OpenAI)(nil)

// OpenAI streams completions from an OpenAI-compatible chat completions
// endpoint using server-sent events.
type OpenAI struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithBaseURL sets the API root, for example "http://localhost:8080/v1".
func WithBaseURL(u string) OpenAIOption {
	return func(o *OpenAI) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets the chat model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) OpenAIOption {
	return func(o *OpenAI) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithHTTPClient replaces the HTTP client. Streaming responses must not be
// cut by a client-wide timeout; bound calls with the context instead.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.client = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(o *OpenAI) { o.logger = logger }
}

// NewOpenAI creates a provider authenticated with apiKey.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		client:    &http.Client{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream implements Provider. A non-200 response is returned as an
// *entitle.UpstreamError before any fragment is produced.
func (o *OpenAI) Stream(ctx context.Context, req Request) (<-chan Fragment, error) {
	if o.apiKey == "" {
		return nil, &entitle.UpstreamError{Service: serviceName, Err: errors.New("api key not configured")}
	}

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(req.Mode, req.Settings)},
			{Role: "user", Content: req.Text},
		},
		MaxTokens: o.maxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &entitle.UpstreamError{Service: serviceName, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best-effort error detail
		msg := strings.TrimSpace(string(respBody))
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &entitle.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	out := make(chan Fragment)
	go o.read(ctx, resp.Body, out)
	return out, nil
}

// read parses the SSE body and forwards content deltas until [DONE].
func (o *OpenAI) read(ctx context.Context, body io.ReadCloser, out chan<- Fragment) {
	defer close(out)
	defer body.Close()

	send := func(f Fragment) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			o.logger.Debug("generate: skipping unparseable chunk", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
			continue
		}
		if text := *chunk.Choices[0].Delta.Content; text != "" {
			if !send(Fragment{Text: text}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(Fragment{Err: &entitle.UpstreamError{Service: serviceName, Err: err}})
	}
}
