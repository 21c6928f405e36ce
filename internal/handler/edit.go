package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/persistence"
)

type EditRequest struct {
	MessageId string `json:"messageId"`
	ProjectId string `json:"projectId"`
	Content   string `json:"content"`
}

type EditHandlerInterface interface {
	Handle(ctx context.Context, req EditRequest) (chat.Message, error)
}

type EditHandler struct {
	idValidator  *IdValidator
	store        persistence.Store
	roomRouter   *chat.Router
	storeTimeout time.Duration
}

func NewEditHandler(
	idValidator *IdValidator,
	store persistence.Store,
	roomRouter *chat.Router,
	storeTimeout time.Duration,
) *EditHandler {
	return &EditHandler{
		idValidator:  idValidator,
		store:        store,
		roomRouter:   roomRouter,
		storeTimeout: storeTimeout,
	}
}

func (h *EditHandler) Handle(ctx context.Context, req EditRequest) (chat.Message, error) {
	err := h.idValidator.Validate(req.MessageId)
	if err != nil {
		return chat.Message{}, err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return chat.Message{}, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return chat.Message{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("empty-content"))
	}

	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	message, err := h.store.Get(storeCtx, req.MessageId)
	cancel()
	if err != nil {
		return chat.Message{}, mapStoreError(err)
	}

	err = requireJoined(connection, message.ProjectId)
	if err != nil {
		return chat.Message{}, err
	}

	// Only the original sender may edit.
	if message.SenderId != connection.UserId {
		return chat.Message{}, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("only the sender may edit a message"))
	}

	patch := persistence.MessagePatch{
		Content:  content,
		IsEdited: true,
		EditedAt: time.Now(),
	}

	var edited chat.Message

	err = h.roomRouter.Publish(ctx, message.ProjectId, func(ctx context.Context) (chat.Event, error) {
		storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
		defer cancel()

		updated, err := h.store.Update(storeCtx, req.MessageId, patch)
		if err != nil {
			return chat.Event{}, mapStoreError(err)
		}

		edited = updated

		return chat.Event{Method: chat.EventMessageEdited, Params: updated}, nil
	})
	if err != nil {
		return chat.Message{}, err
	}

	return edited, nil
}
