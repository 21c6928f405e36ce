package handler

import (
	"context"
	"sync"
	"testing"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/persistence"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu       sync.Mutex
	messages map[string]chat.Message
	previews map[string]chat.Message

	createErr        error
	createCalls      int
	setReactionCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[string]chat.Message),
		previews: make(map[string]chat.Message),
	}
}

func (s *fakeStore) Create(ctx context.Context, message chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++

	if s.createErr != nil {
		return chat.Message{}, s.createErr
	}

	s.messages[message.Id] = message

	return message, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, patch persistence.MessagePatch) (chat.Message, error) {
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

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.messages, id)

	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[id]
	if !ok {
		return chat.Message{}, persistence.ErrNotFound
	}

	return message, nil
}

func (s *fakeStore) SetReactions(ctx context.Context, id string, reactions map[string][]string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setReactionCalls++

	message, ok := s.messages[id]
	if !ok {
		return chat.Message{}, persistence.ErrNotFound
	}

	message.Reactions = reactions
	s.messages[id] = message

	return message, nil
}

func (s *fakeStore) List(ctx context.Context, projectId string, beforeId string, limit int64) ([]chat.Message, error) {
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

func (s *fakeStore) TouchConversationPreview(ctx context.Context, projectId string, last chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previews[projectId] = last

	return nil
}

func (s *fakeStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createCalls
}

type fakeUsers struct {
	names map[string]string
}

func (u *fakeUsers) GetDisplay(ctx context.Context, userId string) (persistence.UserDisplay, error) {
	name, ok := u.names[userId]
	if !ok {
		return persistence.UserDisplay{}, persistence.ErrNotFound
	}

	return persistence.UserDisplay{Id: userId, Name: name}, nil
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) IsMember(ctx context.Context, projectId string, userId string) (bool, error) {
	args := m.Called(ctx, projectId, userId)

	return args.Bool(0), args.Error(1)
}

func (m *mockChecker) IsModerator(ctx context.Context, projectId string, userId string) (bool, error) {
	args := m.Called(ctx, projectId, userId)

	return args.Bool(0), args.Error(1)
}

func allowAllChecker() *mockChecker {
	checker := &mockChecker{}
	checker.On("IsMember", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	checker.On("IsModerator", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	return checker
}

type testEnv struct {
	router  *chat.Router
	store   *fakeStore
	users   *fakeUsers
	checker *mockChecker
}

func newTestEnv() *testEnv {
	checker := allowAllChecker()

	return &testEnv{
		router:  chat.NewRouter(zap.NewNop(), chat.NewPresenceRegistry(), checker),
		store:   newFakeStore(),
		users:   &fakeUsers{names: map[string]string{}},
		checker: checker,
	}
}

// joinedConnection registers a connection in the room and discards the
// presence events emitted during setup.
func (e *testEnv) joinedConnection(t *testing.T, id string, userId string, projectId string) *chat.Connection {
	t.Helper()

	conn := chat.NewConnection(id, userId, userId, 16, nil)

	_, err := e.router.Join(context.Background(), conn, projectId)
	require.NoError(t, err)
	drainEvents(conn)

	return conn
}

func (e *testEnv) seedMessage(message chat.Message) {
	if message.Reactions == nil {
		message.Reactions = map[string][]string{}
	}
	e.store.messages[message.Id] = message
}

func drainEvents(conn *chat.Connection) []chat.Event {
	var events []chat.Event

	for {
		select {
		case v := <-conn.Send:
			if event, ok := v.(chat.Event); ok {
				events = append(events, event)
			}
		default:
			return events
		}
	}
}

func requireErrorCode(t *testing.T, err error, code ierr.ErrorCode) {
	t.Helper()

	var handlerErr ierr.Error
	require.ErrorAs(t, err, &handlerErr)
	require.Equal(t, code, handlerErr.Code)
}
