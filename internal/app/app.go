package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/config"
	"github.com/questboard/questboard/internal/db"
	"github.com/questboard/questboard/internal/middleware"
	"github.com/questboard/questboard/internal/repository"
	"github.com/questboard/questboard/internal/service"
	"github.com/questboard/questboard/internal/storage"
)

type App struct {
	Cfg              *config.Config
	DB               *sqlx.DB
	Storage          storage.Storage
	AuthLimiter      middleware.Limiter
	AuthService      *service.AuthService
	UserService      *service.UserService
	ProfileService   *service.ProfileService
	EmailService     *service.EmailService
	FileService      *service.FileService
	QuestService     *service.QuestService
	FollowService    *service.FollowService
	DashboardService *service.DashboardService

	closers []io.Closer
}

// New opens the database, applies migrations and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	fileStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := NewWithDB(cfg, database, fileStorage)

	if cfg.RedisURL != "" {
		limiter, err := middleware.NewRedisLimiter(ctx, cfg.RedisURL, cfg.AuthRateLimit, cfg.AuthRateWindow)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		a.AuthLimiter = limiter
		a.closers = append(a.closers, limiter)
		slog.Info("auth rate limiting backed by redis")
	}

	return a, nil
}

// NewWithDB wires the services over an already migrated database.
func NewWithDB(cfg *config.Config, database *sqlx.DB, fileStorage storage.Storage) *App {
	userRepository := repository.NewUserRepository(database)
	profileRepository := repository.NewProfileRepository(database)
	fileRepository := repository.NewFileRepository(database)
	questRepository := repository.NewQuestRepository(database)
	kpiRepository := repository.NewKPIRepository(database)
	followRepository := repository.NewFollowRepository(database)

	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	fileService := service.NewFileService(fileRepository, fileStorage)
	authService := service.NewAuthService(
		userRepository,
		emailService,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.IsProduction(),
		cfg.AllowSignup,
	)
	userService := service.NewUserService(userRepository, profileRepository, fileService, emailService)
	profileService := service.NewProfileService(profileRepository, questRepository, followRepository, fileService)
	questService := service.NewQuestService(questRepository, kpiRepository, profileRepository, userRepository, emailService)
	followService := service.NewFollowService(profileRepository, followRepository, userRepository, emailService)
	dashboardService := service.NewDashboardService(questRepository, kpiRepository, followRepository, cfg.FeedDefaultSize)

	memoryLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)

	return &App{
		Cfg:              cfg,
		DB:               database,
		Storage:          fileStorage,
		AuthLimiter:      memoryLimiter,
		AuthService:      authService,
		UserService:      userService,
		ProfileService:   profileService,
		EmailService:     emailService,
		FileService:      fileService,
		QuestService:     questService,
		FollowService:    followService,
		DashboardService: dashboardService,
		closers:          []io.Closer{closerFunc(memoryLimiter.Close)},
	}
}

func (a *App) Close() error {
	for _, c := range a.closers {
		err := c.Close()
		if err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
