package handler

import (
	"context"
	"errors"
	"time"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/persistence"
)

type ReactionRequest struct {
	MessageId string `json:"messageId"`
	ProjectId string `json:"projectId"`
	Emoji     string `json:"emoji"`
}

type ReactionResponse struct {
	MessageId string              `json:"messageId"`
	Reactions map[string][]string `json:"reactions"`
}

type ReactionHandlerInterface interface {
	Handle(ctx context.Context, req ReactionRequest, add bool) (ReactionResponse, error)
}

type ReactionHandler struct {
	idValidator  *IdValidator
	store        persistence.Store
	roomRouter   *chat.Router
	storeTimeout time.Duration
}

func NewReactionHandler(
	idValidator *IdValidator,
	store persistence.Store,
	roomRouter *chat.Router,
	storeTimeout time.Duration,
) *ReactionHandler {
	return &ReactionHandler{
		idValidator:  idValidator,
		store:        store,
		roomRouter:   roomRouter,
		storeTimeout: storeTimeout,
	}
}

// Handle toggles the caller's membership in the message's per-emoji reaction
// set. Adding twice or removing an absent reaction is a no-op; the resulting
// full reactions map is broadcast so clients cannot drift on lost deltas. The
// read, the toggle and the write all run under the room's publish lock, so
// concurrent reactions to the same message cannot erase one another.
func (h *ReactionHandler) Handle(ctx context.Context, req ReactionRequest, add bool) (ReactionResponse, error) {
	err := h.idValidator.Validate(req.MessageId)
	if err != nil {
		return ReactionResponse{}, err
	}

	err = h.idValidator.Validate(req.ProjectId)
	if err != nil {
		return ReactionResponse{}, err
	}

	if req.Emoji == "" {
		return ReactionResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("emoji is required"))
	}

	connection, err := connectionFromContext(ctx)
	if err != nil {
		return ReactionResponse{}, err
	}

	err = requireJoined(connection, req.ProjectId)
	if err != nil {
		return ReactionResponse{}, err
	}

	var result ReactionResponse

	err = h.roomRouter.Publish(ctx, req.ProjectId, func(ctx context.Context) (chat.Event, error) {
		storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
		defer cancel()

		message, err := h.store.Get(storeCtx, req.MessageId)
		if err != nil {
			return chat.Event{}, mapStoreError(err)
		}

		if message.ProjectId != req.ProjectId {
			return chat.Event{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("message-not-found"))
		}

		var reactions map[string][]string
		var changed bool
		if add {
			reactions, changed = chat.WithReaction(message.Reactions, req.Emoji, connection.UserId)
		} else {
			reactions, changed = chat.WithoutReaction(message.Reactions, req.Emoji, connection.UserId)
		}

		if !changed {
			result = ReactionResponse{
				MessageId: message.Id,
				Reactions: reactions,
			}

			return chat.Event{}, nil
		}

		persisted, err := h.store.SetReactions(storeCtx, req.MessageId, reactions)
		if err != nil {
			return chat.Event{}, mapStoreError(err)
		}

		result = ReactionResponse{
			MessageId: persisted.Id,
			Reactions: persisted.Reactions,
		}

		return chat.Event{Method: chat.EventReactionsUpdated, Params: chat.ReactionsUpdated{
			MessageId: persisted.Id,
			ProjectId: persisted.ProjectId,
			Reactions: persisted.Reactions,
		}}, nil
	})
	if err != nil {
		return ReactionResponse{}, err
	}

	return result, nil
}
