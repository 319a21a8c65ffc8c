// Package domain defines the core domain models for the relay.
package domain

import "time"

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem marks diagnostic turns produced by the relay itself,
	// never sent to the completion service.
	RoleSystem Role = "system"
)

// Turn is one conversational message. Immutable once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// InboundEvent is one message event from the messaging platform.
type InboundEvent struct {
	SenderID  int64
	ChatType  string // "private", "group", "supergroup", "channel"
	Text      string
	Audio     []byte
	AudioHint string // container extension of the audio payload, e.g. ".ogg"
}

// Usage is the token accounting block reported by the completion service.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is the successful outcome of one completion call.
type CompletionResult struct {
	Turn  Turn
	Model string
	Usage Usage
}

// UsageRecord is one row of the usage ledger: accounting for a single
// gateway call. It carries no message content.
type UsageRecord struct {
	RecordID         string    `json:"record_id"`
	UserID           int64     `json:"user_id"`
	RequestID        string    `json:"request_id"`
	Kind             string    `json:"kind"` // "completion" or "transcription"
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageTotals aggregates the ledger for one user.
type UsageTotals struct {
	Calls            int `json:"calls"`
	Failures         int `json:"failures"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
