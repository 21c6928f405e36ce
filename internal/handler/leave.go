package handler

import (
	"context"

	"github.com/planloop/chatgate/internal/chat"
)

type LeaveRequest struct {
	ProjectId string `json:"projectId"`
}

type LeaveResponse struct {
	Success bool `json:"success"`
}

type LeaveHandlerInterface interface {
	Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error)
}

type LeaveHandler struct {
	idValidator *IdValidator
	roomRouter  *chat.Router
}

func NewLeaveHandler(
	idValidator *IdValidator,
	roomRouter *chat.Router,
) *LeaveHandler {
	return &LeaveHandler{
		idValidator,
		roomRouter,
	}
}

func (h *LeaveHandler) Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error) {
	err := h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return LeaveResponse{}, err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return LeaveResponse{}, err
	}

	h.roomRouter.Leave(connection, req.ProjectId)

	return LeaveResponse{
		Success: true,
	}, nil
}
