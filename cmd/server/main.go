package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appdocument "github.com/documind/backend/internal/application/document"
	appevent "github.com/documind/backend/internal/application/event"
	identityapp "github.com/documind/backend/internal/application/identity"
	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/documind/backend/internal/infrastructure/auth"
	"github.com/documind/backend/internal/infrastructure/cache"
	"github.com/documind/backend/internal/infrastructure/config"
	"github.com/documind/backend/internal/infrastructure/docengine"
	"github.com/documind/backend/internal/infrastructure/event"
	"github.com/documind/backend/internal/infrastructure/logger"
	"github.com/documind/backend/internal/infrastructure/persistence"
	"github.com/documind/backend/internal/infrastructure/rendering"
	"github.com/documind/backend/internal/infrastructure/scheduler"
	"github.com/documind/backend/internal/infrastructure/storage"
	"github.com/documind/backend/internal/infrastructure/telemetry"
	"github.com/documind/backend/internal/interfaces/http/handler"
	"github.com/documind/backend/internal/interfaces/http/middleware"
	"github.com/documind/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/documind/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			DocuMind Backend API
//	@version		1.0
//	@description	Document intelligence SaaS backend - OCR, analysis and form generation with per-tenant usage quotas
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/documind/backend
//	@contact.email	support@documind.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting DocuMind backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize telemetry providers (no-ops when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Continuous profiling (pyroscope)
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.PyroscopeAddress,
		ApplicationName:   cfg.App.Name,
		ProfileCPU:        true,
		ProfileInuseSpace: true,
		ProfileAllocSpace: true,
		ProfileGoroutines: true,
		ProfileMutexCount: true,
		ProfileBlockCount: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database instrumentation (otelgorm spans, pool metrics)
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}
	if cfg.Telemetry.Enabled {
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			defer dbMetrics.Stop()
		}
	}

	// Initialize repositories
	usageAccountRepo := persistence.NewUsageAccountRepository(db.DB)
	usageEventRepo := persistence.NewUsageEventRepository(db.DB)
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	ocrJobRepo := persistence.NewGormOCRJobRepository(db.DB)
	analysisRepo := persistence.NewGormDocumentAnalysisRepository(db.DB)
	formTemplateRepo := persistence.NewGormFormTemplateRepository(db.DB)
	generatedFormRepo := persistence.NewGormGeneratedFormRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// The outbox publisher stores domain events in the same transaction as
	// the aggregate write, so quota events never outrun or trail the
	// counter state they describe
	outboxPublisher := event.NewOutboxPublisher(eventSerializer, event.WithMaxRetries(cfg.Event.MaxRetries))
	usageAccountRepo.SetOutboxEventSaver(outboxPublisher)

	// Buffered async writer for the usage audit trail
	usageTracker, err := middleware.NewUsageTracker(middleware.UsageTrackerConfig{
		Enabled:       true,
		BufferSize:    cfg.Quota.EventBufferSize,
		BatchSize:     cfg.Quota.EventBatchSize,
		FlushInterval: cfg.Quota.EventFlushInterval,
		MeterProvider: meterProvider,
		Logger:        log,
	}, usageEventRepo)
	if err != nil {
		log.Fatal("Failed to initialize usage tracker", zap.Error(err))
	}
	usageTracker.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := usageTracker.Stop(ctx); err != nil {
			log.Error("Error stopping usage tracker", zap.Error(err))
		}
	}()

	// Metering services share one per-tenant lock table so the rollover
	// sweep and request-path increments serialize against each other
	accountLocks := appmetering.NewAccountLocks()
	meteringService := appmetering.NewMeteringService(
		usageAccountRepo,
		usageTracker,
		tenantRepo,
		accountLocks,
		nil,
		log,
		appmetering.MeteringServiceConfig{
			MaxSaveRetries:      cfg.Quota.MaxSaveRetries,
			RetryBaseDelay:      cfg.Quota.RetryBaseDelay,
			IdempotencyRequired: cfg.Quota.IdempotencyRequired,
		},
	)
	rolloverService := appmetering.NewRolloverService(
		usageAccountRepo,
		accountLocks,
		nil,
		log,
		appmetering.RolloverServiceConfig{
			MaxSaveRetries: cfg.Quota.MaxSaveRetries,
			RetryBaseDelay: cfg.Quota.RetryBaseDelay,
		},
	)

	// Token blacklist backs server-side logout; Redis when configured,
	// otherwise a per-process fallback
	var tokenBlacklist auth.TokenBlacklist
	if cfg.Redis.Host != "" {
		redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis token blacklist unavailable, using in-memory fallback", zap.Error(err))
			tokenBlacklist = auth.NewInMemoryTokenBlacklist()
		} else {
			tokenBlacklist = redisBlacklist
		}
	} else {
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	}

	// Identity services
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, jwtService, identityapp.DefaultAuthServiceConfig(), log)
	authService.SetTokenBlacklist(tokenBlacklist)
	userService := identityapp.NewUserService(userRepo, tenantRepo, log)
	tenantService := identityapp.NewTenantService(tenantRepo, log)

	// Document object storage (S3-compatible, in-memory when no bucket configured)
	var docStorage appdocument.DocumentStorage
	if cfg.Storage.Bucket != "" {
		s3Storage, err := storage.NewS3DocumentStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		docStorage = s3Storage
		log.Info("Object storage initialized", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		docStorage = storage.NewMemoryDocumentStorage()
		log.Warn("No storage bucket configured, using in-memory document storage")
	}

	// PDF rendering for generated forms
	var pdfRenderer rendering.PDFRenderer
	switch cfg.Rendering.Engine {
	case "chromedp":
		pdfRenderer, err = rendering.NewChromedpRenderer(&rendering.ChromedpConfig{
			DefaultTimeout: cfg.Rendering.RenderTimeout,
			RemoteURL:      cfg.Rendering.RemoteURL,
			Headless:       true,
			DisableGPU:     true,
			NoSandbox:      true,
			Scale:          cfg.Rendering.Scale,
			Logger:         log,
		})
		if err != nil {
			log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
		}
	default:
		pdfRenderer = rendering.NewStubRenderer()
		log.Warn("PDF rendering engine not configured, using stub renderer",
			zap.String("engine", cfg.Rendering.Engine))
	}
	defer func() {
		if err := pdfRenderer.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}()
	templateEngine := rendering.NewTemplateEngine()

	// Document processing engines
	ocrEngine := docengine.NewStubOCREngine()
	analysisEngine := docengine.NewStubAnalysisEngine()

	// Background job dispatcher for OCR and analysis execution. The
	// executor depends on the application services, so it is injected
	// after they are built.
	jobDispatcher := scheduler.NewJobDispatcher(scheduler.DispatcherConfig{
		Enabled:           true,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryAttempts:     cfg.Scheduler.RetryAttempts,
		RetryDelay:        cfg.Scheduler.RetryDelay,
	}, nil, log)

	// Document application services
	ocrService := appdocument.NewOCRService(ocrJobRepo, meteringService, docStorage, ocrEngine, jobDispatcher, log)
	analysisService := appdocument.NewAnalysisService(analysisRepo, ocrJobRepo, meteringService, docStorage, analysisEngine, jobDispatcher, log)
	formService := appdocument.NewFormService(formTemplateRepo, generatedFormRepo, meteringService, docStorage, templateEngine, pdfRenderer, log)

	jobExecutor := scheduler.NewDocumentJobExecutor(ocrService, analysisService, log)
	jobDispatcher.SetExecutor(jobExecutor)
	if err := jobDispatcher.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job dispatcher", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := jobDispatcher.Stop(ctx); err != nil {
			log.Error("Error stopping job dispatcher", zap.Error(err))
		}
	}()

	// Outbox maintenance service
	outboxService := appevent.NewOutboxService(outboxRepo, log)

	// Initialize event bus and subscribe handlers. Outbox delivery is
	// at-least-once, so subscribers go through the idempotency wrapper.
	eventBus := event.NewInMemoryEventBus(log)

	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	quotaAlertHandler := appmetering.NewQuotaAlertHandler(log)
	eventBus.Subscribe(event.NewIdempotentHandler(
		quotaAlertHandler,
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			Enabled: true,
			TTL:     cfg.Quota.IdempotencyTTL,
		}),
	))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Outbox processor polls pending entries and feeds them to the bus
	outboxProcessorConfig := event.DefaultOutboxProcessorConfig()
	if cfg.Event.BatchSize > 0 {
		outboxProcessorConfig.BatchSize = cfg.Event.BatchSize
	}
	if cfg.Event.PollInterval > 0 {
		outboxProcessorConfig.PollInterval = cfg.Event.PollInterval
	}
	outboxProcessorConfig.CleanupEnabled = cfg.Event.CleanupEnabled
	if cfg.Event.CleanupRetention > 0 {
		outboxProcessorConfig.CleanupRetention = cfg.Event.CleanupRetention
	}
	if cfg.Event.ProcessorEnabled {
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxProcessorConfig, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxProcessorConfig.BatchSize),
			zap.Duration("poll_interval", outboxProcessorConfig.PollInterval),
		)
	}

	// Daily rollover sweep. When lazy rollover is off the sweep is the
	// only thing that closes stale periods, so it is forced on.
	rolloverSchedulerConfig := scheduler.DefaultRolloverSchedulerConfig()
	rolloverSchedulerConfig.Enabled = cfg.Scheduler.Enabled || !cfg.Quota.LazyRollover
	if cfg.Scheduler.DailyCronSchedule != "" {
		hour, minute, err := scheduler.ParseCronSchedule(cfg.Scheduler.DailyCronSchedule)
		if err != nil {
			log.Warn("Invalid rollover cron schedule, using default",
				zap.String("schedule", cfg.Scheduler.DailyCronSchedule),
				zap.Error(err))
		} else {
			rolloverSchedulerConfig.CronHour = hour
			rolloverSchedulerConfig.CronMinute = minute
			rolloverSchedulerConfig.DailyCronSchedule = cfg.Scheduler.DailyCronSchedule
		}
	}
	if rolloverSchedulerConfig.Enabled {
		rolloverScheduler := scheduler.NewRolloverScheduler(rolloverSchedulerConfig, rolloverService, log)
		if err := rolloverScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start rollover scheduler", zap.Error(err))
		}
		defer func() {
			if err := rolloverScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping rollover scheduler", zap.Error(err))
			}
		}()
		log.Info("Rollover scheduler started",
			zap.Int("cron_hour", rolloverSchedulerConfig.CronHour),
			zap.Int("cron_minute", rolloverSchedulerConfig.CronMinute),
		)
	}

	// Initialize HTTP handlers
	usageHandler := handler.NewUsageHandler(meteringService, rolloverService)
	ocrHandler := handler.NewOCRHandler(ocrService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	formTemplateHandler := handler.NewFormTemplateHandler(formService)
	generatedFormHandler := handler.NewGeneratedFormHandler(formService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	tenantHandler := handler.NewTenantHandler(tenantService)
	outboxHandler := handler.NewOutboxHandler(outboxService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing/Metrics/Profiling - Telemetry (when enabled)
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("http.server"), true))
	}
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Swagger documentation endpoint
	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any",
			middleware.SwaggerProtection(middleware.SwaggerConfig{
				Enabled:     cfg.Swagger.Enabled,
				RequireAuth: cfg.Swagger.RequireAuth,
				AllowedIPs:  cfg.Swagger.AllowedIPs,
			}, middleware.JWTAuthMiddleware(jwtService)),
			ginSwagger.WrapHandler(swaggerFiles.Handler),
		)
	}

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	// Configure skip paths for public endpoints
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Auth domain (login/refresh are public via skip paths)
	authRoutes := router.NewDomainGroup("auth", "/auth")
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		authRoutes.Use(middleware.RateLimit(authLimiter))
	}
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.RefreshToken)
	authRoutes.POST("/logout", authHandler.Logout)
	authRoutes.GET("/me", authHandler.GetCurrentUser)
	authRoutes.PUT("/password", authHandler.ChangePassword)

	// Metering domain: quota and usage for the calling tenant (resolved
	// from the token)
	meteringRoutes := router.NewDomainGroup("metering", "/tenants/current")
	meteringRoutes.GET("/quota", usageHandler.GetQuotaOverview)
	meteringRoutes.GET("/quota/:kind", usageHandler.GetQuotaForKind)
	meteringRoutes.GET("/usage/history", usageHandler.GetUsageHistory)
	meteringRoutes.GET("/usage/events", usageHandler.ListUsageEvents)
	meteringRoutes.GET("/plan/changes", usageHandler.GetPlanChanges)

	// Admin domain: plan changes, manual resets, global rollover
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.Use(middleware.RequireAdmin())
	adminRoutes.GET("/tenants/:id/usage", usageHandler.GetTenantUsageByAdmin)
	adminRoutes.PUT("/tenants/:id/plan", usageHandler.UpdateTenantPlan)
	adminRoutes.POST("/tenants/:id/usage/reset", usageHandler.ResetTenantUsage)
	adminRoutes.POST("/usage/rollover", usageHandler.RunRollover)

	// OCR domain
	ocrRoutes := router.NewDomainGroup("ocr", "/ocr")
	ocrRoutes.POST("/jobs", ocrHandler.Submit)
	ocrRoutes.GET("/jobs", ocrHandler.List)
	ocrRoutes.GET("/jobs/:id", ocrHandler.GetByID)
	ocrRoutes.GET("/jobs/:id/text", ocrHandler.GetText)

	// Document analysis domain
	analysisRoutes := router.NewDomainGroup("analysis", "/analyses")
	analysisRoutes.POST("", analysisHandler.Create)
	analysisRoutes.GET("", analysisHandler.List)
	analysisRoutes.GET("/:id", analysisHandler.GetByID)

	// Form template domain
	templateRoutes := router.NewDomainGroup("form-template", "/form-templates")
	templateRoutes.POST("", formTemplateHandler.Create)
	templateRoutes.GET("", formTemplateHandler.List)
	templateRoutes.GET("/:id", formTemplateHandler.GetByID)
	templateRoutes.PUT("/:id", formTemplateHandler.Update)
	templateRoutes.DELETE("/:id", formTemplateHandler.Delete)
	templateRoutes.POST("/:id/activate", formTemplateHandler.Activate)
	templateRoutes.POST("/:id/deactivate", formTemplateHandler.Deactivate)

	// Generated form domain
	formRoutes := router.NewDomainGroup("form", "/forms")
	formRoutes.POST("", generatedFormHandler.Generate)
	formRoutes.GET("", generatedFormHandler.List)
	formRoutes.GET("/:id", generatedFormHandler.GetByID)
	formRoutes.GET("/:id/download", generatedFormHandler.Download)

	// Identity domain (users, tenants)
	identityRoutes := router.NewDomainGroup("identity", "/identity")
	identityRoutes.POST("/users", userHandler.Create)
	identityRoutes.GET("/users", userHandler.List)
	identityRoutes.GET("/users/stats/count", userHandler.Count)
	identityRoutes.GET("/users/:id", userHandler.GetByID)
	identityRoutes.PUT("/users/:id", userHandler.Update)
	identityRoutes.DELETE("/users/:id", userHandler.Delete)
	identityRoutes.POST("/users/:id/activate", userHandler.Activate)
	identityRoutes.POST("/users/:id/deactivate", userHandler.Deactivate)
	identityRoutes.POST("/users/:id/lock", userHandler.Lock)
	identityRoutes.POST("/users/:id/unlock", userHandler.Unlock)
	identityRoutes.POST("/users/:id/reset-password", userHandler.ResetPassword)
	identityRoutes.PUT("/users/:id/role", userHandler.ChangeRole)

	identityRoutes.POST("/tenants", tenantHandler.Create)
	identityRoutes.GET("/tenants", tenantHandler.List)
	identityRoutes.GET("/tenants/stats", tenantHandler.GetStats)
	identityRoutes.GET("/tenants/stats/count", tenantHandler.Count)
	identityRoutes.GET("/tenants/:id", tenantHandler.GetByID)
	identityRoutes.GET("/tenants/code/:code", tenantHandler.GetByCode)
	identityRoutes.PUT("/tenants/:id", tenantHandler.Update)
	identityRoutes.PUT("/tenants/:id/config", tenantHandler.UpdateConfig)
	identityRoutes.PUT("/tenants/:id/plan", tenantHandler.SetPlan)
	identityRoutes.DELETE("/tenants/:id", tenantHandler.Delete)
	identityRoutes.POST("/tenants/:id/activate", tenantHandler.Activate)
	identityRoutes.POST("/tenants/:id/deactivate", tenantHandler.Deactivate)
	identityRoutes.POST("/tenants/:id/suspend", tenantHandler.Suspend)

	// System domain (info, ping, outbox maintenance)
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/outbox/dead", middleware.RequireAdmin(), outboxHandler.GetDeadLetterEntries)
	systemRoutes.GET("/outbox/stats", middleware.RequireAdmin(), outboxHandler.GetStats)
	systemRoutes.GET("/outbox/:id", middleware.RequireAdmin(), outboxHandler.GetEntry)
	systemRoutes.POST("/outbox/:id/retry", middleware.RequireAdmin(), outboxHandler.RetryDeadEntry)
	systemRoutes.POST("/outbox/dead/retry-all", middleware.RequireAdmin(), outboxHandler.RetryAllDeadEntries)

	// Register domain route groups
	r.Register(authRoutes).
		Register(meteringRoutes).
		Register(adminRoutes).
		Register(ocrRoutes).
		Register(analysisRoutes).
		Register(templateRoutes).
		Register(formRoutes).
		Register(identityRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
