package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/config"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	redisrepo "github.com/kazuki388/Threads/internal/repo/redis"
	actionlogsvc "github.com/kazuki388/Threads/internal/services/actionlog"
	adminauthsvc "github.com/kazuki388/Threads/internal/services/adminauth"
	banssvc "github.com/kazuki388/Threads/internal/services/bans"
	grantssvc "github.com/kazuki388/Threads/internal/services/grants"
	statssvc "github.com/kazuki388/Threads/internal/services/stats"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redisrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	banRepo := pgrepo.NewBanRepo(pool)
	grantRepo := pgrepo.NewGrantRepo(pool)
	statsRepo := pgrepo.NewStatsRepo(pool)
	actionRepo := pgrepo.NewActionLogRepo(pool)
	featuredRepo := pgrepo.NewFeaturedRepo(pool)
	banCache := redisrepo.NewBanCacheRepo(redisClient)

	adminAuth := adminauthsvc.NewService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	banService := banssvc.NewService(banRepo, banCache)
	grantService := grantssvc.NewService(grantRepo, cfg.Discord.RoleGrants)
	statsService := statssvc.NewService(statsRepo, cfg.Rotation, log)
	// The API only reads the log; announcements stay with the bot process.
	actionLogService := actionlogsvc.NewService(actionRepo, nil, actionlogsvc.Config{}, log)

	RegisterRoutes(r, Dependencies{
		AdminAuthService: adminAuth,
		FeaturedHistory:  featuredRepo,
		BanService:       banService,
		GrantService:     grantService,
		StatsService:     statsService,
		ActionLogService: actionLogService,
		Logger:           log,
		Config:           cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
