package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/planloop/chatgate/internal/chat"
)

// ErrNotFound reports that the referenced message does not exist (anymore).
var ErrNotFound = errors.New("message not found")

// MessagePatch is the mutable part of a message applied by an edit.
type MessagePatch struct {
	Content  string
	IsEdited bool
	EditedAt time.Time
}

// Store is the durable message store. It is the single source of truth for
// message content; nothing in the gateway caches message bodies.
type Store interface {
	Create(ctx context.Context, message chat.Message) (chat.Message, error)
	Update(ctx context.Context, id string, patch MessagePatch) (chat.Message, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (chat.Message, error)
	SetReactions(ctx context.Context, id string, reactions map[string][]string) (chat.Message, error)
	List(ctx context.Context, projectId string, beforeId string, limit int64) ([]chat.Message, error)
	TouchConversationPreview(ctx context.Context, projectId string, last chat.Message) error
}

type UserDisplay struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	AvatarUrl string `json:"avatarUrl,omitempty"`
}

// Users resolves sender display fields for outbound message events.
type Users interface {
	GetDisplay(ctx context.Context, userId string) (UserDisplay, error)
}
