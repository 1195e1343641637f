package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/repository"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

// ChatService handles private user-to-user conversations outside the issue lifecycle.
type ChatService struct {
	users      repository.UserRepository
	messages   repository.DirectMessageRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	UserRepo    repository.UserRepository
	MessageRepo repository.DirectMessageRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ChatService{
		users:      deps.UserRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// Contacts lists every other user for the sidebar.
func (s *ChatService) Contacts(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.list(ctx, repository.UserFilter{ExcludeID: actor.ID})
}

// Search matches other users by name or email.
func (s *ChatService) Search(ctx context.Context, actor *domain.User, query string) ([]domain.User, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.list(ctx, repository.UserFilter{ExcludeID: actor.ID, Search: strings.TrimSpace(query)})
}

// Conversations lists the users the caller has exchanged messages with.
func (s *ChatService) Conversations(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	partners, err := s.messages.Partners(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if partners == nil {
		partners = []string{}
	}
	return s.list(ctx, repository.UserFilter{IDs: partners, ExcludeID: actor.ID})
}

// History returns the conversation between the caller and peerID, oldest first.
func (s *ChatService) History(ctx context.Context, actor *domain.User, peerID string) ([]domain.DirectMessage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	msgs, err := s.messages.ListBetween(ctx, actor.ID, peerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if msgs == nil {
		msgs = []domain.DirectMessage{}
	}
	return msgs, nil
}

// Send stores a private message and pushes it to the receiver.
func (s *ChatService) Send(ctx context.Context, actor *domain.User, receiverID, text, image string) (*domain.DirectMessage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	text = strings.TrimSpace(text)
	image = strings.TrimSpace(image)
	if text == "" && image == "" {
		return nil, apperrors.NewValidationError("message must contain either text or an image", map[string]any{"field": "text"})
	}
	if receiverID == actor.ID {
		return nil, apperrors.NewValidationError("cannot message yourself", map[string]any{"receiverId": receiverID})
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("receiver", map[string]any{"id": receiverID})
		}
		return nil, apperrors.MapError(err)
	}

	msg := &domain.DirectMessage{
		SenderID:   actor.ID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Debug("direct message", zap.String("sender_id", actor.ID), zap.String("receiver_id", receiverID))
	publish(ctx, s.dispatcher, events.Event{
		Type:    events.EventDirectMessage,
		Actor:   actorOf(actor),
		Payload: events.DirectMessagePayload{Message: *msg},
	}, s.now)
	return msg, nil
}

func (s *ChatService) list(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}
