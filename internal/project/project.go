package project

import (
	"context"
	"errors"
)

// ErrNotFound reports that the referenced project does not exist in the host
// application's store.
var ErrNotFound = errors.New("project not found")

// Checker answers membership questions against the host application's
// project records. It is consulted on room join and on privileged operations
// such as delete-as-moderator.
type Checker interface {
	IsMember(ctx context.Context, projectId string, userId string) (bool, error)
	IsModerator(ctx context.Context, projectId string, userId string) (bool, error)
}
