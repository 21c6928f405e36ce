package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/planloop/chatgate/internal/auth"
	"github.com/planloop/chatgate/internal/handler"
	"github.com/planloop/chatgate/internal/ierr"
	"go.uber.org/zap"
)

// RESTServer is the server-to-server surface: the host application posts
// system announcements here with an API key.
type RESTServer struct {
	logger *zap.Logger

	systemMessageHandler handler.SystemMessageHandlerInterface
	authenticator        *auth.Authenticator
}

func NewRESTServer(
	logger *zap.Logger,
	systemMessageHandler handler.SystemMessageHandlerInterface,
	authenticator *auth.Authenticator,
) *RESTServer {
	return &RESTServer{
		logger,
		systemMessageHandler,
		authenticator,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/system-message", s.handleSystemMessage).Methods("POST")

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
}

func (s *RESTServer) handleSystemMessage(w http.ResponseWriter, r *http.Request) {
	apiKey, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	_, err := s.authenticator.VerifyAPIKey(apiKey)
	if err != nil {
		http.Error(w, "invalid api key", http.StatusUnauthorized)

		return
	}

	var request handler.SystemMessageRequest
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	message, err := s.systemMessageHandler.Handle(r.Context(), request)
	if err != nil {
		s.logger.Error("failed to handle system message", zap.Error(err))
		http.Error(w, err.Error(), statusFromError(err))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(message)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)

		return
	}
}

func statusFromError(err error) int {
	var handlerErr ierr.Error
	if !errors.As(err, &handlerErr) {
		return http.StatusInternalServerError
	}

	switch handlerErr.Code {
	case ierr.ErrorCodeInvalidArgument:
		return http.StatusBadRequest
	case ierr.ErrorCodeNotFound:
		return http.StatusNotFound
	case ierr.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case ierr.ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ierr.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
