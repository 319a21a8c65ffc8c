package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// chatCompletionRequest is the chat completion request payload.
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage is one role/content pair on the wire.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the chat completion response payload.
type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

// choice is one completion choice.
type choice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// usage is the token accounting block.
type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// errorResponse is the structured API error envelope.
type errorResponse struct {
	Error *apiError `json:"error"`
}

// apiError holds the error details.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

const opCompletion = "completion"

// Complete sends the ordered transcript to the chat completion endpoint and
// returns the first choice as an assistant turn. Failures are classified as
// transport, parse or api errors; the caller owns rollback of the turn that
// triggered the call.
func (c *Client) Complete(ctx context.Context, turns []domain.Turn) (*domain.CompletionResult, error) {
	messages := make([]chatMessage, len(turns))
	for i, t := range turns {
		messages[i] = chatMessage{Role: string(t.Role), Content: t.Content}
	}

	body, err := json.Marshal(chatCompletionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindParse, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindTransport, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindTransport, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return nil, domain.NewGatewayError(opCompletion, domain.ErrKindAPI,
				fmt.Errorf("API error [%d]: %s (type: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Type))
		}
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindAPI,
			fmt.Errorf("API error [%d]: %s", resp.StatusCode, string(respBody)))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindParse, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil {
		return nil, domain.NewGatewayError(opCompletion, domain.ErrKindParse, fmt.Errorf("response contained no choices"))
	}

	// Only the first choice is consumed.
	msg := result.Choices[0].Message
	role := domain.Role(msg.Role)
	if role == "" {
		role = domain.RoleAssistant
	}

	out := &domain.CompletionResult{
		Turn:  domain.Turn{Role: role, Content: msg.Content},
		Model: result.Model,
	}
	if result.Usage != nil {
		out.Usage = domain.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}
