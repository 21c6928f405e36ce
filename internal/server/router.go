package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/handler"
	"github.com/planloop/chatgate/internal/ierr"
	"go.uber.org/zap"
)

// Router is the explicit dispatch table from wire method to protocol
// handler. It decodes params, enforces the publish rate limit and maps every
// failure to a structured error returned only to the initiating connection.
type Router struct {
	logger *zap.Logger

	heartbeatHandler handler.HeartbeatHandlerInterface
	joinHandler      handler.JoinHandlerInterface
	leaveHandler     handler.LeaveHandlerInterface
	sendHandler      handler.SendHandlerInterface
	editHandler      handler.EditHandlerInterface
	deleteHandler    handler.DeleteHandlerInterface
	reactionHandler  handler.ReactionHandlerInterface
	typingHandler    handler.TypingHandlerInterface
	historyHandler   handler.HistoryHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	joinHandler handler.JoinHandlerInterface,
	leaveHandler handler.LeaveHandlerInterface,
	sendHandler handler.SendHandlerInterface,
	editHandler handler.EditHandlerInterface,
	deleteHandler handler.DeleteHandlerInterface,
	reactionHandler handler.ReactionHandlerInterface,
	typingHandler handler.TypingHandlerInterface,
	historyHandler handler.HistoryHandlerInterface,
) *Router {
	return &Router{
		logger,
		heartbeatHandler,
		joinHandler,
		leaveHandler,
		sendHandler,
		editHandler,
		deleteHandler,
		reactionHandler,
		typingHandler,
		historyHandler,
	}
}

func (r *Router) RouteRequest(ctx context.Context, request handler.Request) *handler.Response {
	response, err := r.Handle(ctx, request)
	if err != nil {
		if !request.ReplyExpected() {
			r.logger.Debug("dropping error for notification",
				zap.String("method", request.Method),
				zap.Error(err))

			return nil
		}

		response := request.ReplyWithError(r.mapError(err))

		return &response
	}

	hasResponse := response != nil

	if request.ReplyExpected() && !hasResponse {
		r.logger.Error("handler did not return a response but one was expected",
			zap.String("method", request.Method))

		response := request.ReplyWithError(
			ierr.New(ierr.ErrorCodeInternal, errors.New("internal error")),
		)

		return &response
	}

	if !request.ReplyExpected() && hasResponse {
		return nil
	}

	if hasResponse {
		rawJson, err := json.Marshal(response)
		if err != nil {
			response := request.ReplyWithError(r.mapError(err))

			return &response
		}

		payload := json.RawMessage(rawJson)
		response := request.Reply(&payload)

		return &response
	}

	return nil
}

func (r *Router) Handle(ctx context.Context, request handler.Request) (any, error) {
	if isPublish(request.Method) {
		if conn, ok := chat.ConnectionFromContext(ctx); ok && !conn.AllowPublish() {
			return nil, ierr.New(ierr.ErrorCodeResourceExhausted, errors.New("message rate limit exceeded"))
		}
	}

	switch request.Method {
	case "heartbeat":
		return r.heartbeatHandler.Handle(), nil
	case "join-room":
		var joinReq handler.JoinRequest
		if err := decodeParams(request.Params, &joinReq); err != nil {
			return nil, err
		}

		return r.joinHandler.Handle(ctx, joinReq)
	case "leave-room":
		var leaveReq handler.LeaveRequest
		if err := decodeParams(request.Params, &leaveReq); err != nil {
			return nil, err
		}

		return r.leaveHandler.Handle(ctx, leaveReq)
	case "send-message":
		var sendReq handler.SendRequest
		if err := decodeParams(request.Params, &sendReq); err != nil {
			return nil, err
		}

		return r.sendHandler.Handle(ctx, sendReq)
	case "edit-message":
		var editReq handler.EditRequest
		if err := decodeParams(request.Params, &editReq); err != nil {
			return nil, err
		}

		return r.editHandler.Handle(ctx, editReq)
	case "delete-message":
		var deleteReq handler.DeleteRequest
		if err := decodeParams(request.Params, &deleteReq); err != nil {
			return nil, err
		}

		return r.deleteHandler.Handle(ctx, deleteReq)
	case "add-reaction", "remove-reaction":
		var reactionReq handler.ReactionRequest
		if err := decodeParams(request.Params, &reactionReq); err != nil {
			return nil, err
		}

		return r.reactionHandler.Handle(ctx, reactionReq, request.Method == "add-reaction")
	case "typing-start", "typing-stop":
		var typingReq handler.TypingRequest
		if err := decodeParams(request.Params, &typingReq); err != nil {
			return nil, err
		}

		if err := r.typingHandler.Handle(ctx, typingReq, request.Method == "typing-start"); err != nil {
			return nil, err
		}

		// Typing pulses are usually sent id-less; a pulse carrying an id
		// still gets a plain success ack.
		return handler.TypingResponse{Success: true}, nil
	case "fetch-history":
		var historyReq handler.HistoryRequest
		if err := decodeParams(request.Params, &historyReq); err != nil {
			return nil, err
		}

		return r.historyHandler.Handle(ctx, historyReq)
	default:
		return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("method not found: "+request.Method))
	}
}

func isPublish(method string) bool {
	switch method {
	case "send-message", "edit-message", "delete-message", "add-reaction", "remove-reaction":
		return true
	default:
		return false
	}
}

func (r *Router) mapError(err error) ierr.Error {
	var handlerErr ierr.Error
	if errors.As(err, &handlerErr) {
		return handlerErr
	}

	r.logger.Error("error in protocol handler", zap.Error(err))

	return ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
}

func decodeParams(params *json.RawMessage, v any) error {
	if params == nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params"))
	}

	if err := json.Unmarshal(*params, v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid params: "+err.Error()))
	}

	return nil
}
