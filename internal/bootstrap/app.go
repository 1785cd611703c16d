package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	httphandler "multiroom-chat/internal/handler/http"
	wshandler "multiroom-chat/internal/handler/websocket"
	"multiroom-chat/internal/hub"
	"multiroom-chat/internal/infra/blob"
	gormpersistence "multiroom-chat/internal/infra/persistence/gorm"
	"multiroom-chat/internal/infra/setup"
	redisstate "multiroom-chat/internal/infra/state/redis"
	"multiroom-chat/internal/middleware"
	"multiroom-chat/internal/service"
	"multiroom-chat/internal/tasks"
	"multiroom-chat/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// App 持有应用程序的全部长生命周期组件。
type App struct {
	cfg         *Config
	httpServer  *http.Server
	hub         *hub.Hub
	worker      *worker.WorkerServer
	scheduler   *asynq.Scheduler
	asynqClient *asynq.Client
	redisClient *redis.Client
}

// NewApp 组装整个应用：基础设施连接、存储库、服务、Hub、
// HTTP 路由和后台任务。任何一步失败都直接返回错误。
func NewApp(cfg *Config) (*App, error) {
	// --- 基础设施 ---
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	blobStore, err := blob.NewLocalBlobStore(cfg.UploadDir, "/static/uploads")
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	// --- 存储库 ---
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	messageRepo := gormpersistence.NewGormMessageRepository(db)
	membershipRepo := gormpersistence.NewGormMembershipRepository(db)
	sessionRepo := redisstate.NewRedisSessionRepository(redisClient, cfg.RedisKeyPrefix)

	// --- 服务 ---
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	roomService := service.NewRoomService(roomRepo)
	presenceService := service.NewPresenceService(membershipRepo)
	chatService := service.NewChatService(messageRepo)
	uploadService := service.NewUploadService(blobStore, chatService)

	// --- Hub ---
	chatHub := hub.NewHub(roomService, presenceService, chatService, sessionRepo)

	// --- 后台任务 ---
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	workerServer := worker.NewWorkerServer(redisOpt, membershipRepo, chatHub)
	asynqClient := asynq.NewClient(redisOpt)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: logrus.StandardLogger(),
	})
	if _, err := scheduler.Register("@every 5m", tasks.NewPresenceReconcileTask(), asynq.Queue("low")); err != nil {
		return nil, fmt.Errorf("register presence reconcile task: %w", err)
	}

	// --- HTTP 路由 ---
	authHandler := httphandler.NewAuthHandler(authService, presenceService, sessionRepo, chatHub)
	roomHandler := httphandler.NewRoomHandler(roomService, presenceService, chatService, sessionRepo, chatHub)
	uploadHandler := httphandler.NewUploadHandler(uploadService, sessionRepo, chatHub)
	wsHandler := wshandler.NewHandler(chatHub)

	router := buildRouter(cfg, redisClient, blobStore, authHandler, roomHandler, uploadHandler, wsHandler)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket 连接不能设置写超时
		IdleTimeout:  90 * time.Second,
	}

	return &App{
		cfg:         cfg,
		httpServer:  httpServer,
		hub:         chatHub,
		worker:      workerServer,
		scheduler:   scheduler,
		asynqClient: asynqClient,
		redisClient: redisClient,
	}, nil
}

// buildRouter 组装 Gin 路由和中间件栈。
func buildRouter(cfg *Config, redisClient *redis.Client, blobStore *blob.LocalBlobStore,
	authHandler *httphandler.AuthHandler, roomHandler *httphandler.RoomHandler,
	uploadHandler *httphandler.UploadHandler, wsHandler *wshandler.Handler) *gin.Engine {

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 上传文件的静态服务
	router.Static("/static/uploads", blobStore.Dir())

	api := router.Group("/api")
	api.Use(middleware.RateLimit(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow))
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.Auth(cfg.JWTSecret), authHandler.Logout)
		}

		rooms := api.Group("/rooms")
		rooms.Use(middleware.Auth(cfg.JWTSecret))
		{
			rooms.POST("", roomHandler.CreateRoom)
			rooms.GET("", roomHandler.ListRooms)
			rooms.POST("/:id/join", roomHandler.JoinRoom)
			rooms.GET("/:id/messages", roomHandler.History)
		}

		api.POST("/upload", middleware.Auth(cfg.JWTSecret), uploadHandler.Upload)
	}

	// WebSocket 入口：认证是可选的，未认证连接停留在 Unbound
	router.GET("/ws", middleware.AuthOptional(cfg.JWTSecret), wsHandler.Serve)

	return router
}

// Start 启动所有组件。HTTP 服务阻塞在当前 goroutine，
// Hub、worker 和 scheduler 在各自的 goroutine 中运行。
func (a *App) Start() error {
	go a.hub.Run()

	if err := a.worker.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	logrus.WithField("port", a.cfg.ServerPort).Info("HTTP server is starting...")
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown 按依赖顺序优雅关闭：先停止接收新请求，再停掉
// 后台组件，最后断开基础设施连接。
func (a *App) Shutdown(ctx context.Context) {
	logrus.Info("Shutting down application...")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown error")
	}

	a.scheduler.Shutdown()
	a.worker.Shutdown()
	a.hub.Stop()

	if err := a.asynqClient.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close asynq client")
	}
	if err := a.redisClient.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close redis client")
	}

	logrus.Info("Application shutdown complete")
}
