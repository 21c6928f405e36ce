package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/planloop/chatgate/internal/ierr"
	"github.com/planloop/chatgate/internal/project"
	"go.uber.org/zap"
)

// Router maps project ids to the connections currently joined to their rooms
// and fans outbound events to them. Membership mutations and publishes are
// linearized per room; rooms never share a lock, so a slow store call in one
// project cannot stall another.
type Router struct {
	logger     *zap.Logger
	presence   *PresenceRegistry
	membership project.Checker

	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	// pubMu serializes persist-then-broadcast so the room's delivery order
	// matches store completion order.
	pubMu sync.Mutex
}

func NewRouter(
	logger *zap.Logger,
	presence *PresenceRegistry,
	membership project.Checker,
) *Router {
	return &Router{
		logger:     logger,
		presence:   presence,
		membership: membership,
		rooms:      make(map[string]*room),
	}
}

// Join adds the connection to the project's room after verifying project
// membership. On the user's first connection in the room a user-online event
// is broadcast to everyone, the joiner included. The current online set is
// always returned directly to the joiner so it cannot miss its own delta.
// Rejoining a room the connection is already in is idempotent success.
func (r *Router) Join(ctx context.Context, conn *Connection, projectId string) ([]string, error) {
	member, err := r.membership.IsMember(ctx, projectId, conn.UserId)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("room-not-found"))
		}

		return nil, ierr.New(ierr.ErrorCodeUnavailable, err)
	}

	if !member {
		return nil, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("not-a-member"))
	}

	rm := r.getOrCreateRoom(projectId)

	rm.mu.Lock()
	_, rejoined := rm.conns[conn.Id]
	if !rejoined {
		rm.conns[conn.Id] = conn
	}
	rm.mu.Unlock()

	if rejoined {
		return r.presence.OnlineUsers(projectId), nil
	}

	conn.TrackJoin(projectId)

	if wasFirst := r.presence.Increment(projectId, conn.UserId); wasFirst {
		r.Broadcast(projectId, Event{
			Method: EventUserOnline,
			Params: PresenceDelta{UserId: conn.UserId, ProjectId: projectId},
		}, "")
	}

	return r.presence.OnlineUsers(projectId), nil
}

// Leave removes the connection from the room. When the user's last connection
// leaves, a user-offline event is broadcast to the remaining members. Leaving
// a room the connection is not in is a no-op.
func (r *Router) Leave(conn *Connection, projectId string) {
	r.mu.RLock()
	rm, ok := r.rooms[projectId]
	r.mu.RUnlock()

	if !ok {
		return
	}

	rm.mu.Lock()
	_, joined := rm.conns[conn.Id]
	delete(rm.conns, conn.Id)
	empty := len(rm.conns) == 0
	rm.mu.Unlock()

	if !joined {
		return
	}

	conn.TrackLeave(projectId)

	if wasLast := r.presence.Decrement(projectId, conn.UserId); wasLast {
		r.Broadcast(projectId, Event{
			Method: EventUserOffline,
			Params: PresenceDelta{UserId: conn.UserId, ProjectId: projectId},
		}, "")
	}

	if empty {
		r.dropRoomIfEmpty(projectId)
	}
}

// Broadcast delivers event to every connection in the room except the
// optional exclusion. Delivery is best-effort: a connection whose send buffer
// is full is dropped from the room rather than blocking the others.
func (r *Router) Broadcast(projectId string, event Event, excludeConnectionId string) {
	r.mu.RLock()
	rm, ok := r.rooms[projectId]
	r.mu.RUnlock()

	if !ok {
		return
	}

	rm.mu.RLock()
	conns := make([]*Connection, 0, len(rm.conns))
	for _, conn := range rm.conns {
		if conn.Id == excludeConnectionId {
			continue
		}
		conns = append(conns, conn)
	}
	rm.mu.RUnlock()

	var stale []*Connection

	for _, conn := range conns {
		if !conn.TrySend(event) {
			stale = append(stale, conn)
		}
	}

	for _, conn := range stale {
		r.logger.Warn("connection send buffer full, dropping from room",
			zap.String("connectionId", conn.Id),
			zap.String("projectId", projectId))

		r.Leave(conn, projectId)
	}
}

// Publish runs persist and, only if it succeeds, broadcasts the resulting
// event to the room. The two steps execute as one atomic step per room: other
// publishes to the same room wait, publishes to other rooms do not. No
// membership or presence lock is held while persist suspends on the store.
// A zero event signals that persist found nothing to commit; nothing is
// broadcast then.
func (r *Router) Publish(ctx context.Context, projectId string, persist func(ctx context.Context) (Event, error)) error {
	rm := r.getOrCreateRoom(projectId)

	rm.pubMu.Lock()
	defer rm.pubMu.Unlock()

	event, err := persist(ctx)
	if err != nil {
		return err
	}

	if event.Method == "" {
		return nil
	}

	r.Broadcast(projectId, event, "")

	return nil
}

// OnlineUsers exposes the presence snapshot for a room.
func (r *Router) OnlineUsers(projectId string) []string {
	return r.presence.OnlineUsers(projectId)
}

func (r *Router) getOrCreateRoom(projectId string) *room {
	r.mu.RLock()
	rm, ok := r.rooms[projectId]
	r.mu.RUnlock()

	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[projectId]; ok {
		return rm
	}

	rm = &room{conns: make(map[string]*Connection)}
	r.rooms[projectId] = rm

	return rm
}

func (r *Router) dropRoomIfEmpty(projectId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[projectId]
	if !ok {
		return
	}

	rm.mu.RLock()
	empty := len(rm.conns) == 0
	rm.mu.RUnlock()

	if empty {
		delete(r.rooms, projectId)
	}
}
