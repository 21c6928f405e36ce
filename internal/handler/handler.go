package handler

import (
	"context"
	"errors"

	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/persistence"
)

func connectionFromContext(ctx context.Context) (*chat.Connection, error) {
	conn, ok := chat.ConnectionFromContext(ctx)
	if !ok {
		return nil, errors.New("connection not found in context")
	}

	return conn, nil
}

func requireJoined(conn *chat.Connection, projectId string) error {
	if !conn.HasJoined(projectId) {
		return ierr.New(ierr.ErrorCodePermissionDenied, errors.New("not-a-member"))
	}

	return nil
}

// mapStoreError keeps store failures out of the room: NotFound for vanished
// messages, Unavailable for anything the client may safely retry.
func mapStoreError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return ierr.New(ierr.ErrorCodeNotFound, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ierr.New(ierr.ErrorCodeUnavailable, errors.New("store timed out"))
	}

	var handlerErr ierr.Error
	if errors.As(err, &handlerErr) {
		return handlerErr
	}

	return ierr.New(ierr.ErrorCodeUnavailable, err)
}
