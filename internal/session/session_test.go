package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// fakeCompletion scripts the completion gateway.
type fakeCompletion struct {
	reply    string
	err      error
	calls    int
	gotTurns [][]domain.Turn
}

func (f *fakeCompletion) Complete(_ context.Context, turns []domain.Turn) (*domain.CompletionResult, error) {
	f.calls++
	f.gotTurns = append(f.gotTurns, turns)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompletionResult{
		Turn:  domain.Turn{Role: domain.RoleAssistant, Content: f.reply},
		Model: "test-model",
		Usage: domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// fakeTranscription scripts the transcription gateway.
type fakeTranscription struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscription) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// fakeTranscoder passes audio through unchanged and records the call.
type fakeTranscoder struct {
	calls int
	err   error
}

func (f *fakeTranscoder) ToM4A(_ context.Context, audio []byte, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return audio, nil
}

// usageSink collects ledger rows.
type usageSink struct {
	records []*domain.UsageRecord
}

func (u *usageSink) RecordUsage(_ context.Context, rec *domain.UsageRecord) error {
	u.records = append(u.records, rec)
	return nil
}

func newTestSession(completion *fakeCompletion, transcription *fakeTranscription, transcoder *fakeTranscoder) (*Session, *usageSink) {
	sink := &usageSink{}
	deps := Deps{
		Completion:    completion,
		Transcription: transcription,
		Transcoder:    transcoder,
		Counter:       byteCost{},
		Usage:         sink,
		DefaultBudget: 100,
	}
	return NewSession(42, deps), sink
}

func textEvent(text string) domain.InboundEvent {
	return domain.InboundEvent{SenderID: 42, ChatType: "private", Text: text}
}

func TestSendAppendsUserAndAssistantTurns(t *testing.T) {
	completion := &fakeCompletion{reply: "hi there"}
	sess, sink := newTestSession(completion, nil, nil)

	reply := sess.Handle(context.Background(), textEvent("hello"))

	assert.Equal(t, "assistant: hi there", reply)
	info := sess.Info()
	assert.Equal(t, 2, info.Turns)
	assert.LessOrEqual(t, info.TotalCost, info.Budget)

	// The gateway saw the user turn at the tail of the transcript.
	require.Len(t, completion.gotTurns, 1)
	sent := completion.gotTurns[0]
	require.Len(t, sent, 1)
	assert.Equal(t, domain.RoleUser, sent[0].Role)
	assert.Equal(t, "hello", sent[0].Content)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "completion", sink.records[0].Kind)
	assert.Equal(t, 15, sink.records[0].TotalTokens)
	assert.Empty(t, sink.records[0].ErrorKind)
}

func TestSendRollsBackUserTurnOnFailure(t *testing.T) {
	gerr := domain.NewGatewayError("completion", domain.ErrKindTransport, errors.New("connection refused"))
	completion := &fakeCompletion{err: gerr}
	sess, sink := newTestSession(completion, nil, nil)

	// Seed some history through a working path first.
	completion.err = nil
	completion.reply = "ok"
	sess.Handle(context.Background(), textEvent("first question"))
	before := sess.Info()

	completion.err = gerr
	reply := sess.Handle(context.Background(), textEvent("second question"))

	assert.Contains(t, reply, "connection refused")
	assert.Contains(t, reply, string(domain.RoleSystem))

	// The transcript is exactly what it was before the failed send.
	after := sess.Info()
	assert.Equal(t, before.Turns, after.Turns)
	assert.Equal(t, before.TotalCost, after.TotalCost)

	require.Len(t, sink.records, 2)
	assert.Equal(t, "transport", sink.records[1].ErrorKind)
}

func TestSendFailureOnFreshSessionLeavesWindowEmpty(t *testing.T) {
	completion := &fakeCompletion{err: domain.NewGatewayError("completion", domain.ErrKindAPI, errors.New("rate limited"))}
	sess, _ := newTestSession(completion, nil, nil)

	reply := sess.Handle(context.Background(), textEvent("hello"))

	assert.Contains(t, reply, "rate limited")
	assert.Equal(t, 0, sess.Info().Turns)
}

func TestClearCommand(t *testing.T) {
	completion := &fakeCompletion{reply: "sure"}
	sess, _ := newTestSession(completion, nil, nil)
	sess.Handle(context.Background(), textEvent("remember this"))
	require.Equal(t, 2, sess.Info().Turns)

	reply := sess.Handle(context.Background(), textEvent("/clear"))

	assert.Equal(t, "Cleaned bot brain.", reply)
	assert.Equal(t, 0, sess.Info().Turns)

	// The next send starts a fresh transcript.
	sess.Handle(context.Background(), textEvent("new topic"))
	require.Len(t, completion.gotTurns, 2)
	assert.Len(t, completion.gotTurns[1], 1)
}

func TestSetTokenLimitCommand(t *testing.T) {
	sess, _ := newTestSession(&fakeCompletion{}, nil, nil)

	reply := sess.Handle(context.Background(), textEvent("/set_token_limit 50"))

	assert.Equal(t, "Set token limit to 50", reply)
	assert.Equal(t, 50, sess.Info().Budget)
}

func TestSetTokenLimitRejectsMalformedInput(t *testing.T) {
	completion := &fakeCompletion{}
	sess, _ := newTestSession(completion, nil, nil)

	for _, text := range []string{
		"/set_token_limit",
		"/set_token_limit abc",
		"/set_token_limit -5",
		"/set_token_limit 0",
	} {
		reply := sess.Handle(context.Background(), textEvent(text))
		assert.NotEmpty(t, reply, "input %q must produce a reply", text)
		assert.Equal(t, 100, sess.Info().Budget, "input %q must not change the budget", text)
	}
	// No gateway call was made for any malformed command.
	assert.Equal(t, 0, completion.calls)
}

func TestVoiceMessageFlowsThroughChatPath(t *testing.T) {
	completion := &fakeCompletion{reply: "doing fine"}
	transcription := &fakeTranscription{text: "how are you"}
	transcoder := &fakeTranscoder{}
	sess, _ := newTestSession(completion, transcription, transcoder)

	ev := domain.InboundEvent{SenderID: 42, ChatType: "private", Audio: []byte("oggdata"), AudioHint: ".ogg"}
	reply := sess.Handle(context.Background(), ev)

	assert.Equal(t, 1, transcoder.calls)
	assert.Equal(t, 1, transcription.calls)
	assert.Contains(t, reply, "assistant: doing fine")
	assert.Contains(t, reply, "Message transcribed from audio: how are you")

	// Downstream the transcribed text is indistinguishable from typed text.
	require.Len(t, completion.gotTurns, 1)
	assert.Equal(t, "how are you", completion.gotTurns[0][0].Content)
	assert.Equal(t, 2, sess.Info().Turns)
}

func TestVoiceM4ASkipsTranscoding(t *testing.T) {
	transcoder := &fakeTranscoder{}
	sess, _ := newTestSession(&fakeCompletion{reply: "ok"}, &fakeTranscription{text: "hi"}, transcoder)

	ev := domain.InboundEvent{SenderID: 42, ChatType: "private", Audio: []byte("m4adata"), AudioHint: ".m4a"}
	sess.Handle(context.Background(), ev)

	assert.Equal(t, 0, transcoder.calls)
}

func TestVoiceTranscriptionFailureLeavesWindowUntouched(t *testing.T) {
	transcription := &fakeTranscription{err: domain.NewGatewayError("transcription", domain.ErrKindTransport, errors.New("timeout"))}
	completion := &fakeCompletion{}
	sess, _ := newTestSession(completion, transcription, &fakeTranscoder{})

	ev := domain.InboundEvent{SenderID: 42, ChatType: "private", Audio: []byte("oggdata"), AudioHint: ".ogg"}
	reply := sess.Handle(context.Background(), ev)

	assert.Contains(t, reply, "timeout")
	assert.Equal(t, 0, completion.calls)
	assert.Equal(t, 0, sess.Info().Turns)
}

func TestVoiceTranscodeFailureLeavesWindowUntouched(t *testing.T) {
	transcoder := &fakeTranscoder{err: fmt.Errorf("ffmpeg failed: exit status 1")}
	transcription := &fakeTranscription{}
	sess, _ := newTestSession(&fakeCompletion{}, transcription, transcoder)

	ev := domain.InboundEvent{SenderID: 42, ChatType: "private", Audio: []byte("oggdata"), AudioHint: ".ogg"}
	reply := sess.Handle(context.Background(), ev)

	assert.Contains(t, reply, "ffmpeg failed")
	assert.Equal(t, 0, transcription.calls)
	assert.Equal(t, 0, sess.Info().Turns)
}

func TestEveryCommandProducesExactlyOneReply(t *testing.T) {
	completion := &fakeCompletion{reply: "answer"}
	sess, _ := newTestSession(completion, &fakeTranscription{text: "voice"}, &fakeTranscoder{})

	events := []domain.InboundEvent{
		textEvent("/clear"),
		textEvent("/set_token_limit 200"),
		textEvent("/set_token_limit bogus"),
		textEvent("a question"),
		{SenderID: 42, ChatType: "private", Audio: []byte("a"), AudioHint: ".ogg"},
	}
	for _, ev := range events {
		assert.NotEmpty(t, sess.Handle(context.Background(), ev))
	}
}
