package chat

import (
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/planloop/chatgate/internal/auth"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TokenVerifier validates a bearer token supplied at connection time.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Authentication, error)
}

type ManagerConfig struct {
	// SendBuffer is the per-connection outbound queue depth.
	SendBuffer int
	// PublishRate and PublishBurst bound publish-class events per
	// connection. A zero rate disables throttling.
	PublishRate  float64
	PublishBurst int
}

// Manager owns the lifecycle of live connections: authenticate on connect,
// track while alive, tear down room membership on loss.
type Manager struct {
	logger   *zap.Logger
	verifier TokenVerifier
	router   *Router
	config   ManagerConfig

	mu          sync.Mutex
	connections map[string]*Connection
}

func NewManager(
	logger *zap.Logger,
	verifier TokenVerifier,
	router *Router,
	config ManagerConfig,
) *Manager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 64
	}

	return &Manager{
		logger:      logger,
		verifier:    verifier,
		router:      router,
		config:      config,
		connections: make(map[string]*Connection),
	}
}

// OnConnect verifies the token and registers a new connection with no joined
// rooms. An authentication failure is terminal for the attempt: no state is
// created and the error is returned to the caller.
func (m *Manager) OnConnect(token string) (*Connection, error) {
	authn, err := m.verifier.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if m.config.PublishRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.config.PublishRate), m.config.PublishBurst)
	}

	conn := NewConnection(gonanoid.Must(), authn.UserId, authn.Name, m.config.SendBuffer, limiter)

	m.mu.Lock()
	m.connections[conn.Id] = conn
	m.mu.Unlock()

	m.logger.Info("connection established",
		zap.String("connectionId", conn.Id),
		zap.String("userId", conn.UserId))

	return conn, nil
}

// OnDisconnect leaves every room the connection had joined, emitting presence
// deltas where the user's last connection left, then discards the connection.
// Safe to call more than once for the same id.
func (m *Manager) OnDisconnect(connectionId string) {
	m.mu.Lock()
	conn, ok := m.connections[connectionId]
	delete(m.connections, connectionId)
	m.mu.Unlock()

	if !ok {
		return
	}

	for _, projectId := range conn.Rooms() {
		m.router.Leave(conn, projectId)
	}

	conn.Close()

	m.logger.Info("connection closed",
		zap.String("connectionId", conn.Id),
		zap.String("userId", conn.UserId))
}

// Count reports the number of live connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.connections)
}
