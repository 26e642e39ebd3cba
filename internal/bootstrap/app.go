package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/Avishi2511/bug-tracker/internal/handler/http"
	gormpersistence "github.com/Avishi2511/bug-tracker/internal/infra/persistence/gorm"
	"github.com/Avishi2511/bug-tracker/internal/infra/setup"
	"github.com/Avishi2511/bug-tracker/internal/middleware"
	"github.com/Avishi2511/bug-tracker/internal/service"
	"github.com/Avishi2511/bug-tracker/internal/tasks"
	"github.com/Avishi2511/bug-tracker/internal/worker"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	JWTExpiryHours int

	ServerPort string
	LogLevel   string
	AppEnv     string // development/production
	CORSOrigin string

	// 三个限流通道：全局、认证端点、公共提交端点
	RateLimitMax          int
	RateLimitWindow       time.Duration
	AuthRateLimitMax      int
	AuthRateLimitWindow   time.Duration
	PublicRateLimitMax    int
	PublicRateLimitWindow time.Duration

	// 引导管理员凭据与演示数据开关
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	SeedDemoData  bool
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		CORSOrigin:    os.Getenv("CORS_ALLOWED_ORIGIN"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		// --- 设置默认值 ---
		RateLimitMax:          100,
		RateLimitWindow:       1 * time.Second,
		AuthRateLimitMax:      10,
		AuthRateLimitWindow:   1 * time.Minute,
		PublicRateLimitMax:    5,
		PublicRateLimitWindow: 1 * time.Minute,
		JWTExpiryHours:        24,
	}

	// 处理 Redis DB
	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB")) // 忽略错误，默认为 0

	// 处理演示数据开关
	cfg.SeedDemoData = os.Getenv("SEED_DEMO_DATA") == "true"

	// --- 设置其他默认值和进行必要检查 ---
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "http://localhost:3000"
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
	}
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = "admin@xyzcorp.com"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("environment variable ADMIN_PASSWORD must be set")
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	HttpServer  *http.Server
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s)", logLevel.String())

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	log.Info("Database initialized")

	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	// 引导管理员 + 可选的演示数据
	if err := setup.EnsureAdmin(db, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if cfg.SeedDemoData {
		if err := setup.SeedDemoProjects(db); err != nil {
			log.WithError(err).Warn("Demo project seeding failed")
		}
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	// 4. 初始化 Repositories
	log.Info("Initializing repositories...")
	userRepo := gormpersistence.NewGormUserRepository(db)
	projectRepo := gormpersistence.NewGormProjectRepository(db)
	bugRepo := gormpersistence.NewGormBugRepository(db)
	log.Info("Repositories initialized")

	// 5. 初始化 Services
	log.Info("Initializing services...")
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	userService := service.NewUserService(userRepo)
	projectService := service.NewProjectService(projectRepo, bugRepo)
	notifier := tasks.NewAsynqNotifier(asynqClient)
	bugService := service.NewBugService(bugRepo, projectRepo, userRepo, notifier)
	log.Info("Services initialized")

	// 6. 初始化 Handlers
	log.Info("Initializing handlers...")
	authHandler := httpHandler.NewAuthHandler(authService)
	userHandler := httpHandler.NewUserHandler(userService)
	projectHandler := httpHandler.NewProjectHandler(projectService)
	bugHandler := httpHandler.NewBugHandler(bugService)
	publicHandler := httpHandler.NewPublicHandler(projectService, bugService)
	log.Info("Handlers initialized")

	// 7. 初始化 Worker Server
	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, bugRepo, userRepo, log)
	log.Info("Worker server initialized")

	// 8. 初始化 Gin Engine 和路由
	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(LoggerMiddleware(log))

	// --- CORS ---
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(redisClient, "global", cfg.RateLimitMax, cfg.RateLimitWindow))

	// --- 设置路由 ---
	authMW := middleware.Auth(cfg.JWTSecret, authService)
	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		// 认证端点使用更严格的限流，减缓口令爆破
		authLimit := middleware.RateLimit(redisClient, "auth", cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow)
		authRoutes.POST("/register", authLimit, authHandler.Register)
		authRoutes.POST("/login", authLimit, authHandler.Login)
		authRoutes.GET("/me", authMW, authHandler.Me)
	}

	publicRoutes := api.Group("/public")
	{
		publicRoutes.GET("/projects", publicHandler.ListProjects)
		publicRoutes.POST("/bugs",
			middleware.RateLimit(redisClient, "public", cfg.PublicRateLimitMax, cfg.PublicRateLimitWindow),
			publicHandler.SubmitBug)
	}

	bugRoutes := api.Group("/bugs", authMW)
	{
		bugRoutes.GET("", bugHandler.List)
		bugRoutes.POST("", bugHandler.Create)
		bugRoutes.GET("/:id", bugHandler.Get)
		bugRoutes.PUT("/:id", bugHandler.Update)
		bugRoutes.DELETE("/:id", bugHandler.Delete)
		bugRoutes.PUT("/:id/assign", bugHandler.Assign)
		bugRoutes.PUT("/:id/status", bugHandler.UpdateStatus)
	}

	projectRoutes := api.Group("/projects", authMW)
	{
		projectRoutes.GET("", projectHandler.List)
		projectRoutes.GET("/:id", projectHandler.Get)
		projectRoutes.POST("", projectHandler.Create)
		projectRoutes.PUT("/:id", projectHandler.Update)
		projectRoutes.DELETE("/:id", projectHandler.Delete)
	}

	userRoutes := api.Group("/users", authMW, middleware.RequireAdmin())
	{
		userRoutes.GET("", userHandler.List)
		userRoutes.POST("", userHandler.Create)
		userRoutes.PUT("/:id", userHandler.Update)
	}

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	// 9. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	log.Info("HTTP server initialized")

	// 10. 组装 App 对象
	app := &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		HttpServer:  httpServer,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	// 启动 HTTP 服务器
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 优雅关闭 Worker Server
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 2. 优雅关闭 HTTP 服务器
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 3. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	// 4. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
			"request_id":  c.GetString(middleware.ContextKeyRequestID),
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else {
			// 区分状态码记录日志级别
			if statusCode >= 500 {
				entry.Error("Server error")
			} else if statusCode >= 400 {
				entry.Warn("Client error")
			} else {
				entry.Info("Request handled")
			}
		}
	}
}
