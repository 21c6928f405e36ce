package chat

// Event is an outbound server-to-client notification. It shares the wire
// envelope of a request but carries no id, so clients never ack it.
type Event struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

const (
	EventNewMessage        = "new-message"
	EventMessageEdited     = "message-edited"
	EventMessageDeleted    = "message-deleted"
	EventReactionsUpdated  = "reactions-updated"
	EventUserOnline        = "user-online"
	EventUserOffline       = "user-offline"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
)

type PresenceDelta struct {
	UserId    string `json:"userId"`
	ProjectId string `json:"projectId"`
}

type TypingDelta struct {
	UserId    string `json:"userId"`
	ProjectId string `json:"projectId"`
}

type MessageDeleted struct {
	MessageId string `json:"messageId"`
	ProjectId string `json:"projectId"`
}

type ReactionsUpdated struct {
	MessageId string              `json:"messageId"`
	ProjectId string              `json:"projectId"`
	Reactions map[string][]string `json:"reactions"`
}
