package handler

import (
	"context"
	"time"

	"github.com/planloop/chatgate/internal/chat"
)

type JoinRequest struct {
	ProjectId string `json:"projectId"`
}

type JoinResponse struct {
	Success     bool      `json:"success"`
	OnlineUsers []string  `json:"onlineUsers"`
	Timestamp   time.Time `json:"timestamp"`
}

type JoinHandlerInterface interface {
	Handle(ctx context.Context, req JoinRequest) (JoinResponse, error)
}

type JoinHandler struct {
	idValidator *IdValidator
	roomRouter  *chat.Router
}

func NewJoinHandler(
	idValidator *IdValidator,
	roomRouter *chat.Router,
) *JoinHandler {
	return &JoinHandler{
		idValidator,
		roomRouter,
	}
}

func (h *JoinHandler) Handle(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	err := h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return JoinResponse{}, err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return JoinResponse{}, err
	}

	onlineUsers, err := h.roomRouter.Join(ctx, connection, req.ProjectId)
	if err != nil {
		return JoinResponse{}, err
	}

	return JoinResponse{
		Success:     true,
		OnlineUsers: onlineUsers,
		Timestamp:   time.Now(),
	}, nil
}
