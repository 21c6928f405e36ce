package handler

import (
	"context"
	"errors"
	"time"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/persistence"
	"github.com/planloop/chatgate/internal/project"
)

type DeleteRequest struct {
	MessageId string `json:"messageId"`
	ProjectId string `json:"projectId"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type DeleteHandlerInterface interface {
	Handle(ctx context.Context, req DeleteRequest) (DeleteResponse, error)
}

type DeleteHandler struct {
	idValidator  *IdValidator
	store        persistence.Store
	membership   project.Checker
	roomRouter   *chat.Router
	storeTimeout time.Duration
}

func NewDeleteHandler(
	idValidator *IdValidator,
	store persistence.Store,
	membership project.Checker,
	roomRouter *chat.Router,
	storeTimeout time.Duration,
) *DeleteHandler {
	return &DeleteHandler{
		idValidator:  idValidator,
		store:        store,
		membership:   membership,
		roomRouter:   roomRouter,
		storeTimeout: storeTimeout,
	}
}

func (h *DeleteHandler) Handle(ctx context.Context, req DeleteRequest) (DeleteResponse, error) {
	err := h.idValidator.Validate(req.MessageId)
	if err != nil {
		return DeleteResponse{}, err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return DeleteResponse{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	message, err := h.store.Get(storeCtx, req.MessageId)
	cancel()
	if err != nil {
		return DeleteResponse{}, mapStoreError(err)
	}

	err = requireJoined(connection, message.ProjectId)
	if err != nil {
		return DeleteResponse{}, err
	}

	if message.SenderId != connection.UserId {
		moderator, err := h.membership.IsModerator(ctx, message.ProjectId, connection.UserId)
		if err != nil {
			return DeleteResponse{}, ierr.New(ierr.ErrorCodeUnavailable, err)
		}

		if !moderator {
			return DeleteResponse{}, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("only the sender or a moderator may delete a message"))
		}
	}

	err = h.roomRouter.Publish(ctx, message.ProjectId, func(ctx context.Context) (chat.Event, error) {
		storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
		defer cancel()

		err := h.store.Delete(storeCtx, req.MessageId)
		if err != nil {
			return chat.Event{}, mapStoreError(err)
		}

		// Id only: deleted content is never re-broadcast.
		return chat.Event{Method: chat.EventMessageDeleted, Params: chat.MessageDeleted{
			MessageId: req.MessageId,
			ProjectId: message.ProjectId,
		}}, nil
	})
	if err != nil {
		return DeleteResponse{}, err
	}

	return DeleteResponse{
		Success: true,
	}, nil
}
