package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/planloop/chatgate/internal/auth"
	"github.com/planloop/chatgate/internal/chat"
	"github.com/planloop/chatgate/internal/handler"
	"github.com/planloop/chatgate/internal/persistence/mongodb"
	"github.com/planloop/chatgate/internal/project"
	"github.com/planloop/chatgate/internal/server"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	engine          *mongodb.Engine
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings, mongoClient *mongo.Client) *App {
	storeTimeout := time.Duration(settings.StoreTimeoutSeconds) * time.Second

	engine := mongodb.NewEngine(mongoClient, settings.DatabaseName)
	membership := project.NewMongoChecker(mongoClient, settings.DatabaseName)

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.APIKeys)

	presence := chat.NewPresenceRegistry()
	roomRouter := chat.NewRouter(logger, presence, membership)
	manager := chat.NewManager(logger, authenticator, roomRouter, chat.ManagerConfig{
		SendBuffer:   settings.SendBuffer,
		PublishRate:  settings.MessageRate,
		PublishBurst: settings.MessageBurst,
	})

	idValidator := handler.NewIdValidator()
	heartbeatHandler := handler.NewHeartbeatHandler()
	joinHandler := handler.NewJoinHandler(idValidator, roomRouter)
	leaveHandler := handler.NewLeaveHandler(idValidator, roomRouter)
	sendHandler := handler.NewSendHandler(logger, idValidator, engine, engine, roomRouter, storeTimeout)
	editHandler := handler.NewEditHandler(idValidator, engine, roomRouter, storeTimeout)
	deleteHandler := handler.NewDeleteHandler(idValidator, engine, membership, roomRouter, storeTimeout)
	reactionHandler := handler.NewReactionHandler(idValidator, engine, roomRouter, storeTimeout)
	typingHandler := handler.NewTypingHandler(idValidator, roomRouter)
	historyHandler := handler.NewHistoryHandler(idValidator, engine, storeTimeout)
	systemMessageHandler := handler.NewSystemMessageHandler(logger, idValidator, engine, roomRouter, storeTimeout)

	router := server.NewRouter(
		logger,
		heartbeatHandler,
		joinHandler,
		leaveHandler,
		sendHandler,
		editHandler,
		deleteHandler,
		reactionHandler,
		typingHandler,
		historyHandler,
	)

	originChecker := server.NewOriginChecker(settings.AllowedOrigins)
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		manager,
		router,
	)
	restServer := server.NewRESTServer(
		logger,
		systemMessageHandler,
		authenticator,
	)

	return &App{
		logger,
		settings,
		engine,
		websocketServer,
		restServer,
	}
}

func (a *App) setup(ctx context.Context) error {
	err := a.engine.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup persistence engine: %w", err)
	}

	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		panic(fmt.Errorf("failed to parse settings from environment: %w", err))
	}

	logger, err := buildZapLogger(settings.LogEncoding)
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			logger.Error("failed to disconnect from mongodb", zap.Error(err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = mongoClient.Ping(pingCtx, nil)
	cancel()
	if err != nil {
		logger.Fatal("failed to ping mongodb", zap.Error(err))
	}

	app := NewApp(logger, settings, mongoClient)

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
