package chat

import (
	"slices"
	"time"
)

// SystemSenderId is the sentinel sender used for server-originated
// announcements.
const SystemSenderId = "system"

type Message struct {
	Id         string              `json:"id"`
	ProjectId  string              `json:"projectId"`
	SenderId   string              `json:"senderId"`
	SenderName string              `json:"senderName,omitempty"`
	Content    string              `json:"content"`
	CreatedAt  time.Time           `json:"createdAt"`
	IsEdited   bool                `json:"isEdited"`
	EditedAt   *time.Time          `json:"editedAt,omitempty"`
	ReplyToId  string              `json:"replyToId,omitempty"`
	Mentions   []string            `json:"mentions,omitempty"`
	Reactions  map[string][]string `json:"reactions"`
}

// WithReaction returns the reactions map after adding userId under emoji.
// Adding is idempotent: a user appears at most once per emoji.
func WithReaction(reactions map[string][]string, emoji string, userId string) (map[string][]string, bool) {
	if slices.Contains(reactions[emoji], userId) {
		return reactions, false
	}

	updated := cloneReactions(reactions)
	updated[emoji] = append(updated[emoji], userId)

	return updated, true
}

// WithoutReaction returns the reactions map after removing userId from emoji.
// Removing an absent reaction is a no-op. Empty emoji sets are dropped so the
// map round-trips to its pre-react state.
func WithoutReaction(reactions map[string][]string, emoji string, userId string) (map[string][]string, bool) {
	idx := slices.Index(reactions[emoji], userId)
	if idx < 0 {
		return reactions, false
	}

	updated := cloneReactions(reactions)
	updated[emoji] = slices.Delete(updated[emoji], idx, idx+1)
	if len(updated[emoji]) == 0 {
		delete(updated, emoji)
	}

	return updated, true
}

func cloneReactions(reactions map[string][]string) map[string][]string {
	cloned := make(map[string][]string, len(reactions))
	for emoji, userIds := range reactions {
		cloned[emoji] = slices.Clone(userIds)
	}

	return cloned
}
