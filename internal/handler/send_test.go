package handler

import (
	"context"
	"testing"
	"time"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSendHandler(env *testEnv) *SendHandler {
	return NewSendHandler(zap.NewNop(), NewIdValidator(), env.store, env.users, env.router, time.Second)
}

func TestSendHandler_Handle(t *testing.T) {
	t.Run("persists then broadcasts", func(t *testing.T) {
		env := newTestEnv()
		env.users.names["alice"] = "Alice Pemberton"
		handler := newSendHandler(env)

		alice := env.joinedConnection(t, "c1", "alice", "p1")
		bob := env.joinedConnection(t, "c2", "bob", "p1")
		drainEvents(alice)

		ctx := chat.WithConnection(context.Background(), alice)
		message, err := handler.Handle(ctx, SendRequest{
			ProjectId: "p1",
			Content:   "  hello team  ",
			Mentions:  []string{"bob"},
		})

		require.NoError(t, err)
		assert.NotEmpty(t, message.Id)
		assert.Equal(t, "hello team", message.Content)
		assert.Equal(t, "alice", message.SenderId)
		assert.Equal(t, "Alice Pemberton", message.SenderName)
		assert.Equal(t, []string{"bob"}, message.Mentions)
		assert.False(t, message.IsEdited)

		stored, err := env.store.Get(context.Background(), message.Id)
		require.NoError(t, err)
		assert.Equal(t, message.Content, stored.Content)

		events := drainEvents(bob)
		require.Len(t, events, 1)
		assert.Equal(t, chat.EventNewMessage, events[0].Method)
		assert.Equal(t, message, events[0].Params)

		assert.Equal(t, message, env.store.previews["p1"])
	})

	t.Run("rejects non-member with no store write and no broadcast", func(t *testing.T) {
		env := newTestEnv()
		handler := newSendHandler(env)

		bob := env.joinedConnection(t, "c2", "bob", "p1")
		outsider := chat.NewConnection("c1", "mallory", "mallory", 16, nil)

		ctx := chat.WithConnection(context.Background(), outsider)
		_, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "hi"})

		requireErrorCode(t, err, ierr.ErrorCodePermissionDenied)
		assert.Equal(t, 0, env.store.createCount())
		assert.Empty(t, drainEvents(bob))
	})

	t.Run("rejects empty content after trim", func(t *testing.T) {
		env := newTestEnv()
		handler := newSendHandler(env)

		alice := env.joinedConnection(t, "c1", "alice", "p1")

		ctx := chat.WithConnection(context.Background(), alice)
		_, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "   \n\t "})

		requireErrorCode(t, err, ierr.ErrorCodeInvalidArgument)
		assert.Equal(t, 0, env.store.createCount())
	})

	t.Run("rejects reply to a message in another room", func(t *testing.T) {
		env := newTestEnv()
		handler := newSendHandler(env)

		env.seedMessage(chat.Message{Id: "m9", ProjectId: "p2", SenderId: "bob", Content: "other room"})

		alice := env.joinedConnection(t, "c1", "alice", "p1")
		bob := env.joinedConnection(t, "c2", "bob", "p1")
		drainEvents(alice)

		ctx := chat.WithConnection(context.Background(), alice)
		_, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "hi", ReplyToId: "m9"})

		requireErrorCode(t, err, ierr.ErrorCodeNotFound)
		assert.Equal(t, 0, env.store.createCount())
		assert.Empty(t, drainEvents(bob))
	})

	t.Run("rejects reply to a missing message", func(t *testing.T) {
		env := newTestEnv()
		handler := newSendHandler(env)

		alice := env.joinedConnection(t, "c1", "alice", "p1")

		ctx := chat.WithConnection(context.Background(), alice)
		_, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "hi", ReplyToId: "gone"})

		requireErrorCode(t, err, ierr.ErrorCodeNotFound)
	})

	t.Run("accepts reply within the same room", func(t *testing.T) {
		env := newTestEnv()
		handler := newSendHandler(env)

		env.seedMessage(chat.Message{Id: "m1", ProjectId: "p1", SenderId: "bob", Content: "original"})

		alice := env.joinedConnection(t, "c1", "alice", "p1")

		ctx := chat.WithConnection(context.Background(), alice)
		message, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "agreed", ReplyToId: "m1"})

		require.NoError(t, err)
		assert.Equal(t, "m1", message.ReplyToId)
	})

	t.Run("store failure reaches only the sender", func(t *testing.T) {
		env := newTestEnv()
		env.store.createErr = assert.AnError
		handler := newSendHandler(env)

		alice := env.joinedConnection(t, "c1", "alice", "p1")
		bob := env.joinedConnection(t, "c2", "bob", "p1")
		drainEvents(alice)

		ctx := chat.WithConnection(context.Background(), alice)
		_, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "hi"})

		requireErrorCode(t, err, ierr.ErrorCodeUnavailable)
		assert.Empty(t, drainEvents(bob))
		assert.Empty(t, drainEvents(alice))
	})

	t.Run("falls back to the connection name when display lookup fails", func(t *testing.T) {
		env := newTestEnv()
		handler := newSendHandler(env)

		alice := env.joinedConnection(t, "c1", "alice", "p1")

		ctx := chat.WithConnection(context.Background(), alice)
		message, err := handler.Handle(ctx, SendRequest{ProjectId: "p1", Content: "hi"})

		require.NoError(t, err)
		assert.Equal(t, "alice", message.SenderName)
	})
}
