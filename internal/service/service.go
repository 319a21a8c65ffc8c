// Package service wires the session registry and the access policy into the
// event-handling entry point used by the messaging transport.
package service

import (
	"context"
	"log"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/policy"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/session"
)

// Service dispatches inbound events to per-user sessions.
type Service struct {
	registry       *session.Registry
	policyEngine   *policy.Engine
	allowedSenders []int64
}

// New creates the service. allowedSenders may be empty to admit all senders.
func New(registry *session.Registry, policyEngine *policy.Engine, allowedSenders []int64) *Service {
	if allowedSenders == nil {
		allowedSenders = []int64{}
	}
	return &Service{
		registry:       registry,
		policyEngine:   policyEngine,
		allowedSenders: allowedSenders,
	}
}

// HandleEvent runs one inbound event through the access policy and, if
// admitted, through its session. An empty reply means the event was ignored.
func (s *Service) HandleEvent(ctx context.Context, ev domain.InboundEvent) string {
	decision, err := s.policyEngine.Evaluate(ctx, map[string]interface{}{
		"chat_type":       ev.ChatType,
		"sender_id":       ev.SenderID,
		"allowed_senders": s.allowedSenders,
	})
	if err != nil {
		log.Printf("WARN: policy evaluation failed, ignoring event from %d: %v", ev.SenderID, err)
		return ""
	}
	if decision != policy.DecisionAllow {
		log.Printf("ignoring %s event from %d (decision: %s)", ev.ChatType, ev.SenderID, decision)
		return ""
	}

	sess := s.registry.GetOrCreate(ev.SenderID)
	return sess.Handle(ctx, ev)
}
