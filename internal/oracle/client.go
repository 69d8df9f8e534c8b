// Package oracle asks a remote reasoning service for a yes/no trading
// signal. Every failure mode is modeled as a tagged result, never as a
// loosely-shaped response: callers branch on Result.Kind and fall back to
// their rule-based decision on anything but Success.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds the generate call end to end.
const DefaultTimeout = 30 * time.Second

// Kind tags the outcome of a Generate call.
type Kind int

const (
	Success Kind = iota
	Timeout
	TransportError
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case TransportError:
		return "transport-error"
	case MalformedResponse:
		return "malformed-response"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one oracle call. Text is only meaningful
// when Kind is Success; Err is only set on failure kinds.
type Result struct {
	Kind Kind
	Text string
	Err  error
}

// Client calls the reasoning service's generate endpoint.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

// NewClient creates a client for the oracle at baseURL (for example
// "http://ollama:11434") using the given model. A non-positive timeout
// falls back to DefaultTimeout.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Generate sends the prompt and classifies the outcome. It never returns an
// error: failures are values so the decision stage can treat the fallback
// as a defined branch of normal operation.
func (c *Client) Generate(ctx context.Context, prompt string) Result {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return Result{Kind: TransportError, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Result{Kind: TransportError, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Result{Kind: Timeout, Err: err}
		}
		return Result{Kind: TransportError, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Kind: TransportError,
			Err:  fmt.Errorf("oracle returned status %d", resp.StatusCode),
		}
	}

	// Decode defensively: the response field may simply be absent.
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{Kind: MalformedResponse, Err: fmt.Errorf("failed to decode oracle response: %w", err)}
	}

	raw, ok := payload["response"]
	if !ok {
		return Result{Kind: MalformedResponse, Err: errors.New("oracle response missing 'response' field")}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return Result{Kind: MalformedResponse, Err: fmt.Errorf("oracle 'response' field is not a string: %w", err)}
	}

	return Result{Kind: Success, Text: text}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return false
}

// ShouldTrade parses the decision signal from oracle text: true iff the
// lowercased text contains "yes". Deliberately substring-based; surrounding
// negation is not interpreted.
func ShouldTrade(text string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(text)), "yes")
}
