package handler

import (
	"context"
	"time"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/persistence"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type HistoryRequest struct {
	ProjectId string `json:"projectId"`
	BeforeId  string `json:"beforeId,omitempty"`
	Limit     int64  `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Messages []chat.Message `json:"messages"`
}

type HistoryHandlerInterface interface {
	Handle(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

type HistoryHandler struct {
	idValidator  *IdValidator
	store        persistence.Store
	storeTimeout time.Duration
}

func NewHistoryHandler(
	idValidator *IdValidator,
	store persistence.Store,
	storeTimeout time.Duration,
) *HistoryHandler {
	return &HistoryHandler{
		idValidator:  idValidator,
		store:        store,
		storeTimeout: storeTimeout,
	}
}

func (h *HistoryHandler) Handle(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	err := h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return HistoryResponse{}, err
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return HistoryResponse{}, err
	}

	err = requireJoined(connection, req.ProjectId)
	if err != nil {
		return HistoryResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	messages, err := h.store.List(storeCtx, req.ProjectId, req.BeforeId, limit)
	if err != nil {
		return HistoryResponse{}, mapStoreError(err)
	}

	return HistoryResponse{
		Messages: messages,
	}, nil
}
