package session

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/tokenizer"
)

// Recognized text commands.
const (
	cmdClear    = "/clear"
	cmdSetLimit = "/set_token_limit"
)

// Deps are the collaborators a Session needs. Counter and Completion are
// required; Transcription and Transcoder only for voice input; Usage may be
// nil to disable the ledger.
type Deps struct {
	Completion    CompletionGateway
	Transcription TranscriptionGateway
	Transcoder    Transcoder
	Counter       tokenizer.Counter
	Usage         UsageRecorder
	DefaultBudget int
}

// Session is the conversational state machine for one end-user. All command
// execution is serialized by an internal mutex, so at most one send-class
// command is in flight per session while different sessions run concurrently.
type Session struct {
	userID int64
	window *ContextWindow
	deps   Deps
	mu     sync.Mutex
}

// NewSession creates a session with an empty context window.
func NewSession(userID int64, deps Deps) *Session {
	return &Session{
		userID: userID,
		window: NewContextWindow(deps.Counter, deps.DefaultBudget),
		deps:   deps,
	}
}

// UserID returns the opaque sender identity this session belongs to.
func (s *Session) UserID() int64 {
	return s.userID
}

// Info is a point-in-time snapshot of a session for observability.
type Info struct {
	UserID    int64 `json:"user_id"`
	Turns     int   `json:"turns"`
	TotalCost int   `json:"total_cost"`
	Budget    int   `json:"budget"`
}

// Info snapshots the session state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		UserID:    s.userID,
		Turns:     s.window.Len(),
		TotalCost: s.window.TotalCost(),
		Budget:    s.window.Budget(),
	}
}

// Clear resets the session history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.Clear()
}

// SetBudget replaces the token budget. n must be a positive integer.
func (s *Session) SetBudget(n int) error {
	if n <= 0 {
		return domain.ErrInvalidBudget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.SetBudget(n)
	return nil
}

// Handle executes one inbound event and returns exactly one reply, whether
// the command succeeded or failed.
func (s *Session) Handle(ctx context.Context, ev domain.InboundEvent) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case ev.Text == cmdClear:
		s.window.Clear()
		return "Cleaned bot brain."
	case strings.HasPrefix(ev.Text, cmdSetLimit):
		return s.applyTokenLimit(ev.Text)
	case len(ev.Audio) > 0:
		return s.sendVoice(ctx, ev.Audio, ev.AudioHint)
	default:
		return s.send(ctx, ev.Text)
	}
}

// applyTokenLimit parses and applies "/set_token_limit <n>". Malformed input
// produces a user-visible error and no state change.
func (s *Session) applyTokenLimit(text string) string {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "Usage: /set_token_limit <n>"
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		return fmt.Sprintf("%s: %v", domain.RoleSystem, domain.ErrInvalidBudget)
	}
	s.window.SetBudget(n)
	return "Set token limit to " + strconv.Itoa(n)
}

// send appends the user turn, calls the completion gateway exactly once, and
// either appends the reply or rolls the user turn back so a failed attempt
// never leaves a dangling question in the transcript.
func (s *Session) send(ctx context.Context, text string) string {
	if evicted := s.window.Append(domain.Turn{Role: domain.RoleUser, Content: text}); evicted > 0 {
		log.Printf("session %d: evicted %d turns, total cost now %d/%d",
			s.userID, evicted, s.window.TotalCost(), s.window.Budget())
	}

	start := time.Now()
	result, err := s.deps.Completion.Complete(ctx, s.window.Turns())
	latency := time.Since(start)

	if err != nil {
		s.window.RemoveLast()
		s.recordUsage(ctx, "completion", "", nil, latency, err)
		log.Printf("session %d: completion failed: %v", s.userID, err)
		return fmt.Sprintf("%s: %v", domain.RoleSystem, err)
	}

	s.window.Append(result.Turn)
	s.recordUsage(ctx, "completion", result.Model, &result.Usage, latency, nil)
	return fmt.Sprintf("%s: %s", result.Turn.Role, result.Turn.Content)
}

// sendVoice transcribes the audio payload and feeds the recognized text
// through the normal chat path, echoing the transcript back for visibility
// into what was heard. The window is untouched on transcription failure.
func (s *Session) sendVoice(ctx context.Context, audio []byte, hint string) string {
	if hint != ".m4a" && s.deps.Transcoder != nil {
		converted, err := s.deps.Transcoder.ToM4A(ctx, audio, hint)
		if err != nil {
			log.Printf("session %d: audio transcode failed: %v", s.userID, err)
			return fmt.Sprintf("%s: %v", domain.RoleSystem, err)
		}
		audio, hint = converted, ".m4a"
	}

	start := time.Now()
	text, err := s.deps.Transcription.Transcribe(ctx, audio, hint)
	latency := time.Since(start)
	s.recordUsage(ctx, "transcription", "", nil, latency, err)

	if err != nil {
		log.Printf("session %d: transcription failed: %v", s.userID, err)
		return fmt.Sprintf("%s: %v", domain.RoleSystem, err)
	}

	reply := s.send(ctx, text)
	return reply + "\n\nMessage transcribed from audio: " + text
}

// recordUsage writes one ledger row. Best-effort: failures are logged, never
// surfaced to the user.
func (s *Session) recordUsage(ctx context.Context, kind, model string, usage *domain.Usage, latency time.Duration, callErr error) {
	if s.deps.Usage == nil {
		return
	}
	prefix := "llm"
	if kind == "transcription" {
		prefix = "stt"
	}
	rec := &domain.UsageRecord{
		RecordID:  uuid.New().String(),
		UserID:    s.userID,
		RequestID: prefix + "_" + uuid.New().String()[:8],
		Kind:      kind,
		Model:     model,
		LatencyMs: latency.Milliseconds(),
		CreatedAt: time.Now(),
	}
	if usage != nil {
		rec.PromptTokens = usage.PromptTokens
		rec.CompletionTokens = usage.CompletionTokens
		rec.TotalTokens = usage.TotalTokens
	}
	if callErr != nil {
		rec.ErrorKind = "unknown"
		if gerr, ok := domain.AsGatewayError(callErr); ok {
			rec.ErrorKind = string(gerr.Kind)
		}
	}
	if err := s.deps.Usage.RecordUsage(ctx, rec); err != nil {
		log.Printf("WARN: failed to record usage for session %d: %v", s.userID, err)
	}
}
