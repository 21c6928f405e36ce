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

type SystemMessageRequest struct {
	ProjectId string `json:"projectId"`
	Content   string `json:"content"`
}

type SystemMessageHandlerInterface interface {
	Handle(ctx context.Context, req SystemMessageRequest) (chat.Message, error)
}

// SystemMessageHandler persists and broadcasts server-originated
// announcements under the system sender sentinel. It is reached through the
// REST surface, never through a client connection.
type SystemMessageHandler struct {
	logger       *zap.Logger
	idValidator  *IdValidator
	store        persistence.Store
	roomRouter   *chat.Router
	storeTimeout time.Duration
}

func NewSystemMessageHandler(
	logger *zap.Logger,
	idValidator *IdValidator,
	store persistence.Store,
	roomRouter *chat.Router,
	storeTimeout time.Duration,
) *SystemMessageHandler {
	return &SystemMessageHandler{
		logger:       logger,
		idValidator:  idValidator,
		store:        store,
		roomRouter:   roomRouter,
		storeTimeout: storeTimeout,
	}
}

func (h *SystemMessageHandler) Handle(ctx context.Context, req SystemMessageRequest) (chat.Message, error) {
	err := h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return chat.Message{}, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return chat.Message{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("empty-content"))
	}

	message := chat.Message{
		Id:         gonanoid.Must(),
		ProjectId:  req.ProjectId,
		SenderId:   chat.SystemSenderId,
		SenderName: "System",
		Content:    content,
		CreatedAt:  time.Now(),
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
