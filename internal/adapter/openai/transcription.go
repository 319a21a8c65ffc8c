package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// transcriptionResponse is the audio transcription response payload.
type transcriptionResponse struct {
	Text string `json:"text"`
}

const opTranscription = "transcription"

// Transcribe posts the audio payload as a multipart form to the audio
// transcription endpoint and returns the recognized text. hint is the
// container extension used for the uploaded file name, e.g. ".m4a".
func (c *Client) Transcribe(ctx context.Context, audio []byte, hint string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("model", c.transcribeModel); err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindParse, fmt.Errorf("failed to write model field: %w", err))
	}
	part, err := writer.CreateFormFile("file", "audio"+hint)
	if err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindParse, fmt.Errorf("failed to create file part: %w", err))
	}
	if _, err := part.Write(audio); err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindParse, fmt.Errorf("failed to write audio payload: %w", err))
	}
	if err := writer.Close(); err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindParse, fmt.Errorf("failed to finalize form: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindTransport, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindTransport, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return "", domain.NewGatewayError(opTranscription, domain.ErrKindAPI,
				fmt.Errorf("API error [%d]: %s (type: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Type))
		}
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindAPI,
			fmt.Errorf("API error [%d]: %s", resp.StatusCode, string(respBody)))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", domain.NewGatewayError(opTranscription, domain.ErrKindParse, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return result.Text, nil
}
