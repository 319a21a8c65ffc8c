package session

import (
	"context"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// CompletionGateway produces an assistant turn from an ordered transcript.
type CompletionGateway interface {
	Complete(ctx context.Context, turns []domain.Turn) (*domain.CompletionResult, error)
}

// TranscriptionGateway converts an audio payload to recognized text.
type TranscriptionGateway interface {
	Transcribe(ctx context.Context, audio []byte, hint string) (string, error)
}

// Transcoder converts an audio payload to an m4a (AAC) container.
type Transcoder interface {
	ToM4A(ctx context.Context, audio []byte, hint string) ([]byte, error)
}

// UsageRecorder persists accounting for one gateway call. Recording is
// best-effort: a failure is logged and never surfaces to the user.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec *domain.UsageRecord) error
}
