package app

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/controller"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"bizops_backend/internal/service"
	"bizops_backend/internal/util"
	"bizops_backend/pkg/configwatcher"
	"bizops_backend/pkg/database"
	"bizops_backend/pkg/logger"
	"bizops_backend/pkg/monitoring"
	"bizops_backend/pkg/security"
	"bizops_backend/pkg/tracing"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	tracer          *sdktrace.TracerProvider
	ctx             context.Context
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user          *repository.UserRepository
	questionnaire *repository.QuestionnaireRepository
	response      *repository.ResponseRepository
	syncLog       *repository.SyncLogRepository
	credential    *repository.CredentialRepository
	oauthState    *repository.OAuthStateRepository
}

type services struct {
	storage       *service.StorageService
	credential    *service.CredentialService
	questionnaire *service.QuestionnaireService
	conversion    *service.FormConversionService
	sync          *service.ResponseSyncService
	export        *service.SheetExportService
}

type controllers struct {
	questionnaire *controller.QuestionnaireController
	googleAuth    *controller.GoogleAuthController
	health        *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cipher *util.TokenCipher) *repositories {
	return &repositories{
		user:          repository.NewUserRepository(db),
		questionnaire: repository.NewQuestionnaireRepository(db),
		response:      repository.NewResponseRepository(db),
		syncLog:       repository.NewSyncLogRepository(db),
		credential:    repository.NewCredentialRepository(db, cipher),
		oauthState:    repository.NewOAuthStateRepository(rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	factory := provider.NewGoogleFactory()
	s := &services{}

	s.storage = service.NewStorageService(&cfg.Storage)
	s.credential = service.NewCredentialService(repos.credential, repos.oauthState, provider.NewGoogleOAuth(cfg.Google), cfg.Google)
	s.questionnaire = service.NewQuestionnaireService(repos.questionnaire, repos.response, repos.syncLog, cfg.Sync)
	s.conversion = service.NewFormConversionService(repos.questionnaire, s.credential, factory)
	s.sync = service.NewResponseSyncService(
		repos.questionnaire,
		repos.response,
		repos.user,
		service.NewSyncLogRecorder(repos.syncLog),
		s.credential,
		factory,
		cfg.Sync,
	)
	s.export = service.NewSheetExportService(repos.questionnaire, repos.response, s.credential, factory, s.storage, cfg.Export)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		questionnaire: controller.NewQuestionnaireController(s.questionnaire, s.conversion, s.sync, s.export),
		googleAuth:    controller.NewGoogleAuthController(s.credential),
		health:        controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		ctx:    ctx,
		cancel: cancel,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	cipher, err := util.NewTokenCipher(cfg.Google.TokenKey)
	if err != nil {
		logger.Log.Fatal("Invalid google token key", zap.Error(err))
	}
	if !cipher.Enabled() {
		logger.Log.Warn("google.token_key is empty, OAuth tokens are stored unencrypted")
	}

	repos := app.initRepositories(db, rdb, cipher)
	svcs := app.initServices(repos, cfg)
	ctrls := app.initControllers(svcs)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(c *config.Config) {
		logger.ApplyMode(c.Server.Mode)
	})
	go func() {
		err := configwatcher.WatchConfig(ctx, filepath.Join(configDir, "config.yaml"), app.applyConfig)
		if err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()

	return app
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(ctx)

	logger.Log.Info("Server exiting")
}

// Close releases background workers and connections.
func (a *App) Close(ctx context.Context) {
	a.cancel()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
