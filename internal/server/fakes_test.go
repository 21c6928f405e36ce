package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/planloop/chatgate/internal/auth"
	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/handler"
	"github.com/planloop/chatgate/internal/persistence"
	"go.uber.org/zap"
)

type memoryStore struct {
	mu       sync.Mutex
	messages map[string]chat.Message
	previews map[string]chat.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		messages: make(map[string]chat.Message),
		previews: make(map[string]chat.Message),
	}
}

func (s *memoryStore) Create(ctx context.Context, message chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[message.Id] = message

	return message, nil
}

func (s *memoryStore) Update(ctx context.Context, id string, patch persistence.MessagePatch) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[id]
	if !ok {
		return chat.Message{}, persistence.ErrNotFound
	}

	message.Content = patch.Content
	message.IsEdited = patch.IsEdited
	editedAt := patch.EditedAt
	message.EditedAt = &editedAt
	s.messages[id] = message

	return message, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.messages, id)

	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[id]
	if !ok {
		return chat.Message{}, persistence.ErrNotFound
	}

	return message, nil
}

func (s *memoryStore) SetReactions(ctx context.Context, id string, reactions map[string][]string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[id]
	if !ok {
		return chat.Message{}, persistence.ErrNotFound
	}

	message.Reactions = reactions
	s.messages[id] = message

	return message, nil
}

func (s *memoryStore) List(ctx context.Context, projectId string, beforeId string, limit int64) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []chat.Message
	for _, message := range s.messages {
		if message.ProjectId == projectId {
			messages = append(messages, message)
		}
	}

	return messages, nil
}

func (s *memoryStore) TouchConversationPreview(ctx context.Context, projectId string, last chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previews[projectId] = last

	return nil
}

func (s *memoryStore) GetDisplay(ctx context.Context, userId string) (persistence.UserDisplay, error) {
	return persistence.UserDisplay{}, persistence.ErrNotFound
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

// stubChecker treats every listed project as existing with the given members.
type stubChecker struct {
	members map[string][]string
}

func (c *stubChecker) IsMember(ctx context.Context, projectId string, userId string) (bool, error) {
	for _, member := range c.members[projectId] {
		if member == userId {
			return true, nil
		}
	}

	return false, nil
}

func (c *stubChecker) IsModerator(ctx context.Context, projectId string, userId string) (bool, error) {
	return false, nil
}

type testGateway struct {
	store         *memoryStore
	authenticator *auth.Authenticator
	manager       *chat.Manager
	roomRouter    *chat.Router
	router        *Router
	websocket     *WebSocketServer
	rest          *RESTServer
}

func newTestGateway(members map[string][]string) *testGateway {
	logger := zap.NewNop()
	store := newMemoryStore()
	checker := &stubChecker{members: members}
	storeTimeout := time.Second

	authenticator := auth.NewAuthenticator("test-secret", []string{"test-api-key"})
	roomRouter := chat.NewRouter(logger, chat.NewPresenceRegistry(), checker)
	manager := chat.NewManager(logger, authenticator, roomRouter, chat.ManagerConfig{SendBuffer: 16})

	idValidator := handler.NewIdValidator()
	router := NewRouter(
		logger,
		handler.NewHeartbeatHandler(),
		handler.NewJoinHandler(idValidator, roomRouter),
		handler.NewLeaveHandler(idValidator, roomRouter),
		handler.NewSendHandler(logger, idValidator, store, store, roomRouter, storeTimeout),
		handler.NewEditHandler(idValidator, store, roomRouter, storeTimeout),
		handler.NewDeleteHandler(idValidator, store, checker, roomRouter, storeTimeout),
		handler.NewReactionHandler(idValidator, store, roomRouter, storeTimeout),
		handler.NewTypingHandler(idValidator, roomRouter),
		handler.NewHistoryHandler(idValidator, store, storeTimeout),
	)

	upgrader := &websocket.Upgrader{
		CheckOrigin: NewOriginChecker(nil).Check,
	}

	return &testGateway{
		store:         store,
		authenticator: authenticator,
		manager:       manager,
		roomRouter:    roomRouter,
		router:        router,
		websocket:     NewWebSocketServer(logger, upgrader, manager, router),
		rest: NewRESTServer(
			logger,
			handler.NewSystemMessageHandler(logger, idValidator, store, roomRouter, storeTimeout),
			authenticator,
		),
	}
}
