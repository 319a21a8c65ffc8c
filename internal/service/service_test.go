package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/policy"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/session"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/tokenizer"
)

type staticCompletion struct{}

func (staticCompletion) Complete(_ context.Context, _ []domain.Turn) (*domain.CompletionResult, error) {
	return &domain.CompletionResult{
		Turn: domain.Turn{Role: domain.RoleAssistant, Content: "answer"},
	}, nil
}

func newTestService(t *testing.T, allowed []int64) (*Service, *session.Registry) {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	registry := session.NewRegistry(session.Deps{
		Completion:    staticCompletion{},
		Counter:       tokenizer.Heuristic{},
		DefaultBudget: 100,
	})
	return New(registry, engine, allowed), registry
}

func TestPrivateEventDispatchedToSession(t *testing.T) {
	svc, registry := newTestService(t, nil)

	reply := svc.HandleEvent(context.Background(), domain.InboundEvent{
		SenderID: 42,
		ChatType: "private",
		Text:     "hello",
	})

	assert.Equal(t, "assistant: answer", reply)
	assert.Equal(t, 1, registry.Len())
}

func TestGroupEventIgnored(t *testing.T) {
	svc, registry := newTestService(t, nil)

	reply := svc.HandleEvent(context.Background(), domain.InboundEvent{
		SenderID: 42,
		ChatType: "group",
		Text:     "hello",
	})

	assert.Empty(t, reply)
	// An ignored event never creates a session.
	assert.Equal(t, 0, registry.Len())
}

func TestAllowlistEnforced(t *testing.T) {
	svc, _ := newTestService(t, []int64{7})

	allowed := svc.HandleEvent(context.Background(), domain.InboundEvent{SenderID: 7, ChatType: "private", Text: "hi"})
	denied := svc.HandleEvent(context.Background(), domain.InboundEvent{SenderID: 8, ChatType: "private", Text: "hi"})

	assert.NotEmpty(t, allowed)
	assert.Empty(t, denied)
}

func TestRepeatContactReusesSession(t *testing.T) {
	svc, registry := newTestService(t, nil)

	svc.HandleEvent(context.Background(), domain.InboundEvent{SenderID: 1, ChatType: "private", Text: "one"})
	svc.HandleEvent(context.Background(), domain.InboundEvent{SenderID: 1, ChatType: "private", Text: "two"})

	assert.Equal(t, 1, registry.Len())
	sess, ok := registry.Get(1)
	require.True(t, ok)
	assert.Equal(t, 4, sess.Info().Turns)
}
