package chat

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Connection is one authenticated transport-level session. It is created only
// after the bearer token has been verified and is owned by the Manager.
type Connection struct {
	Id          string
	UserId      string
	Name        string
	ConnectedAt time.Time

	// Send carries acks and notifications to the single writer goroutine
	// owning the transport.
	Send chan any

	limiter *rate.Limiter

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

func NewConnection(id string, userId string, name string, sendBuffer int, limiter *rate.Limiter) *Connection {
	return &Connection{
		Id:          id,
		UserId:      userId,
		Name:        name,
		ConnectedAt: time.Now(),
		Send:        make(chan any, sendBuffer),
		limiter:     limiter,
		rooms:       make(map[string]struct{}),
	}
}

// TrySend enqueues v for delivery without blocking. It reports false when the
// connection is closed or its send buffer is full, in which case the caller
// decides whether to drop the connection.
func (c *Connection) TrySend(v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- v:
		return true
	default:
		return false
	}
}

// Close closes the send channel exactly once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.Send)
}

func (c *Connection) TrackJoin(projectId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rooms[projectId] = struct{}{}
}

func (c *Connection) TrackLeave(projectId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.rooms, projectId)
}

func (c *Connection) HasJoined(projectId string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.rooms[projectId]

	return ok
}

func (c *Connection) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for projectId := range c.rooms {
		rooms = append(rooms, projectId)
	}

	return rooms
}

// AllowPublish consumes one token from the connection's publish budget.
// Connections without a limiter are unthrottled.
func (c *Connection) AllowPublish() bool {
	if c.limiter == nil {
		return true
	}

	return c.limiter.Allow()
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
