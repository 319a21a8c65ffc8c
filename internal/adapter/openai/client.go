// Package openai provides clients for the OpenAI chat completion and audio
// transcription endpoints.
package openai

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible API.
type Client struct {
	baseURL         string
	apiKey          string
	model           string
	transcribeModel string
	httpClient      *http.Client
}

// NewClient creates a client with a bounded per-call timeout.
func NewClient(baseURL, apiKey, model, transcribeModel string, timeout time.Duration) *Client {
	return &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		apiKey:          apiKey,
		model:           model,
		transcribeModel: transcribeModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
