package handler

import (
	"context"

	"github.com/planloop/chatgate/internal/chat"
)

type TypingRequest struct {
	ProjectId string `json:"projectId"`
}

type TypingResponse struct {
	Success bool `json:"success"`
}

type TypingHandlerInterface interface {
	Handle(ctx context.Context, req TypingRequest, start bool) error
}

type TypingHandler struct {
	idValidator *IdValidator
	roomRouter  *chat.Router
}

func NewTypingHandler(
	idValidator *IdValidator,
	roomRouter *chat.Router,
) *TypingHandler {
	return &TypingHandler{
		idValidator,
		roomRouter,
	}
}

// Handle broadcasts a typing pulse to the room, excluding the sender. Nothing
// is persisted and nothing is acked; a missed pulse is corrected by the next
// one or by the client-side timeout.
func (h *TypingHandler) Handle(ctx context.Context, req TypingRequest, start bool) error {
	err := h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return err
	}

	if !connection.HasJoined(req.ProjectId) {
		return nil
	}

	method := chat.EventUserTyping
	if !start {
		method = chat.EventUserStoppedTyping
	}

	h.roomRouter.Broadcast(req.ProjectId, chat.Event{
		Method: method,
		Params: chat.TypingDelta{UserId: connection.UserId, ProjectId: req.ProjectId},
	}, connection.Id)

	return nil
}
