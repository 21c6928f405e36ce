package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/handler"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

type WebSocketServer struct {
	logger   *zap.Logger
	upgrader *websocket.Upgrader
	manager  *chat.Manager
	router   *Router
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	manager *chat.Manager,
	router *Router,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		manager,
		router,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/websocket", s.serve)
}

func (s *WebSocketServer) serve(w http.ResponseWriter, r *http.Request) {
	// Authenticate before touching the transport: a bad token refuses the
	// connection and creates no state.
	connection, err := s.manager.OnConnect(bearerToken(r))
	if err != nil {
		s.logger.Info("websocket authentication failed", zap.Error(err))
		http.Error(w, "authentication failed", http.StatusUnauthorized)

		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		s.manager.OnDisconnect(connection.Id)

		return
	}

	s.logger.Info("websocket connection established",
		zap.String("connectionId", connection.Id),
		zap.String("userId", connection.UserId))

	wsConn.SetReadLimit(maxMessageSize)

	go s.writePump(wsConn, connection)
	s.readLoop(r, wsConn, connection)
}

func (s *WebSocketServer) readLoop(r *http.Request, wsConn *websocket.Conn, connection *chat.Connection) {
	defer s.manager.OnDisconnect(connection.Id)

	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var request handler.Request
		err := wsConn.ReadJSON(&request)
		if err != nil {
			s.logger.Debug("websocket connection closed",
				zap.String("connectionId", connection.Id),
				zap.Error(err))

			return
		}

		ctx := chat.WithConnection(r.Context(), connection)

		response := s.router.RouteRequest(ctx, request)
		if response == nil {
			continue
		}

		if !connection.TrySend(*response) {
			s.logger.Warn("failed to enqueue reply, closing connection",
				zap.String("connectionId", connection.Id))

			return
		}
	}
}

func (s *WebSocketServer) writePump(wsConn *websocket.Conn, connection *chat.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case v, ok := <-connection.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := wsConn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		return token
	}

	return r.URL.Query().Get("token")
}
