package messaging

import (
	"context"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
)

// Message event types published on a conversation channel.
const (
	EventMessage = "message"
	EventRead    = "read"
)

// ConversationChannel is the channel live clients of a conversation follow.
func ConversationChannel(conversationID string) string {
	return "conversation." + conversationID
}

// Service handles conversations and the messages posted in them.
type Service struct {
	Conversations *records.Service[model.Conversation]
	messages      *records.Service[model.Message]
	convRepo      repository.Repository[model.Conversation]
	events        *messaging.EventPublisher
}

func NewService(
	conversations repository.Repository[model.Conversation],
	messages repository.Repository[model.Message],
	deps records.Dependencies,
) *Service {
	return &Service{
		Conversations: records.New(conversations, "conversation", model.CollectionConversations, deps, records.Hooks[model.Conversation]{
			PrepareCreate: func(ctx context.Context, c *model.Conversation) error {
				c.LastMessageAt = nil
				c.ParticipantIDs = withParticipant(c.ParticipantIDs, auth.FromContext(ctx))
				return nil
			},
		}),
		messages: records.New(messages, "message", model.CollectionMessages, deps, records.Hooks[model.Message]{}),
		convRepo: conversations,
		events:   deps.Events,
	}
}

// Send posts body to a conversation as the session user and pushes it to
// the conversation channel.
func (s *Service) Send(ctx context.Context, conversationID, body string) (*model.Message, error) {
	conv, err := s.Conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	sess := auth.FromContext(ctx)
	if err := checkParticipant(conv, sess); err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, &model.Message{
		ConversationID: conv.ID,
		SenderID:       sess.ActorID(),
		Body:           body,
		ReadBy:         []string{sess.ActorID()},
	})
	if err != nil {
		return nil, err
	}

	// The conversation write is bookkeeping only; a failure leaves the
	// message in place.
	if _, err := s.convRepo.Update(ctx, conv.ID, model.Document{
		"last_message_at": msg.CreatedAt.UTC().Format(repository.TimestampLayout),
	}); err != nil {
		return msg, fmt.Errorf("message stored but conversation not updated: %w", err)
	}

	s.events.Emit(ctx, ConversationChannel(conv.ID), EventMessage, msg)
	return msg, nil
}

// Messages pages through a conversation, oldest first unless q says
// otherwise.
func (s *Service) Messages(ctx context.Context, conversationID string, q repository.Query) (*repository.Page[model.Message], error) {
	if _, err := s.Conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	if q.OrderBy == "" {
		q.OrderBy = "created_at"
		if q.Direction == "" {
			q.Direction = repository.Asc
		}
	}
	q.Filters = append([]repository.Filter{{Field: "conversation_id", Op: repository.OpEq, Value: conversationID}}, q.Filters...)
	return s.messages.List(ctx, q)
}

// MarkRead adds the session user to a message's read_by list.
func (s *Service) MarkRead(ctx context.Context, conversationID, messageID string) (*model.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != conversationID {
		return nil, apperrors.NewNotFound("message", nil)
	}
	actor := auth.FromContext(ctx).ActorID()
	for _, id := range msg.ReadBy {
		if id == actor {
			return msg, nil
		}
	}
	updated, err := s.messages.Update(ctx, messageID, model.Document{
		"read_by": append(append([]string{}, msg.ReadBy...), actor),
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, ConversationChannel(conversationID), EventRead, map[string]string{
		"message_id": messageID,
		"reader_id":  actor,
	})
	return updated, nil
}

// checkParticipant lets admins and staff post anywhere; everyone else must
// be listed on the conversation.
func checkParticipant(conv *model.Conversation, sess auth.Session) error {
	if sess.HasRole(auth.RoleAdmin, auth.RoleStaff) {
		return nil
	}
	for _, id := range conv.ParticipantIDs {
		if sess.IsAuthenticated() && id == sess.UserID() {
			return nil
		}
	}
	return apperrors.Forbidden("not a participant of this conversation")
}

func withParticipant(ids []string, sess auth.Session) []string {
	if !sess.IsAuthenticated() {
		return ids
	}
	for _, id := range ids {
		if id == sess.UserID() {
			return ids
		}
	}
	return append(ids, sess.UserID())
}
