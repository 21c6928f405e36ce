package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/persistence"
	"go.uber.org/zap"
)

type SendRequest struct {
	ProjectId string   `json:"projectId"`
	Content   string   `json:"content"`
	ReplyToId string   `json:"replyToId,omitempty"`
	Mentions  []string `json:"mentions,omitempty"`
}

type SendHandlerInterface interface {
	Handle(ctx context.Context, req SendRequest) (chat.Message, error)
}

type SendHandler struct {
	logger       *zap.Logger
	idValidator  *IdValidator
	store        persistence.Store
	users        persistence.Users
	roomRouter   *chat.Router
	storeTimeout time.Duration
}

func NewSendHandler(
	logger *zap.Logger,
	idValidator *IdValidator,
	store persistence.Store,
	users persistence.Users,
	roomRouter *chat.Router,
	storeTimeout time.Duration,
) *SendHandler {
	return &SendHandler{
		logger:       logger,
		idValidator:  idValidator,
		store:        store,
		users:        users,
		roomRouter:   roomRouter,
		storeTimeout: storeTimeout,
	}
}

func (h *SendHandler) Handle(ctx context.Context, req SendRequest) (chat.Message, error) {
	err := h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return chat.Message{}, err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return chat.Message{}, err
	}

	err = requireJoined(connection, req.ProjectId)
	if err != nil {
		return chat.Message{}, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return chat.Message{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("empty-content"))
	}

	if req.ReplyToId != "" {
		err := h.validateReplyTarget(ctx, req.ProjectId, req.ReplyToId)
		if err != nil {
			return chat.Message{}, err
		}
	}

	message := chat.Message{
		Id:         gonanoid.Must(),
		ProjectId:  req.ProjectId,
		SenderId:   connection.UserId,
		SenderName: h.resolveSenderName(ctx, connection),
		Content:    content,
		CreatedAt:  time.Now(),
		ReplyToId:  req.ReplyToId,
		Mentions:   req.Mentions,
		Reactions:  map[string][]string{},
	}

	var created chat.Message

	err = h.roomRouter.Publish(ctx, req.ProjectId, func(ctx context.Context) (chat.Event, error) {
		storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
		defer cancel()

		persisted, err := h.store.Create(storeCtx, message)
		if err != nil {
			return chat.Event{}, mapStoreError(err)
		}

		err = h.store.TouchConversationPreview(storeCtx, req.ProjectId, persisted)
		if err != nil {
			// Preview upkeep must not fail a delivered message.
			h.logger.Warn("failed to touch conversation preview",
				zap.String("projectId", req.ProjectId),
				zap.Error(err))
		}

		created = persisted

		return chat.Event{Method: chat.EventNewMessage, Params: persisted}, nil
	})
	if err != nil {
		return chat.Message{}, err
	}

	return created, nil
}

func (h *SendHandler) validateReplyTarget(ctx context.Context, projectId string, replyToId string) error {
	err := h.idValidator.Validate(replyToId)
	if err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	target, err := h.store.Get(storeCtx, replyToId)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ierr.New(ierr.ErrorCodeNotFound, errors.New("reply-target-not-found"))
		}

		return mapStoreError(err)
	}

	// Replies never cross rooms.
	if target.ProjectId != projectId {
		return ierr.New(ierr.ErrorCodeNotFound, errors.New("reply-target-not-found"))
	}

	return nil
}

func (h *SendHandler) resolveSenderName(ctx context.Context, connection *chat.Connection) string {
	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	display, err := h.users.GetDisplay(storeCtx, connection.UserId)
	if err != nil || display.Name == "" {
		return connection.Name
	}

	return display.Name
}
