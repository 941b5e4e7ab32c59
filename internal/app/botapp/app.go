package botapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/config"
	discordinfra "github.com/kazuki388/Threads/internal/infra/discord"
	groqinfra "github.com/kazuki388/Threads/internal/infra/groq"
	s3infra "github.com/kazuki388/Threads/internal/infra/s3"
	"github.com/kazuki388/Threads/internal/jobs/rotation"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	redisrepo "github.com/kazuki388/Threads/internal/repo/redis"
	"github.com/kazuki388/Threads/internal/services/actionlog"
	"github.com/kazuki388/Threads/internal/services/aimod"
	"github.com/kazuki388/Threads/internal/services/bans"
	"github.com/kazuki388/Threads/internal/services/evidence"
	"github.com/kazuki388/Threads/internal/services/featured"
	"github.com/kazuki388/Threads/internal/services/grants"
	"github.com/kazuki388/Threads/internal/services/links"
	"github.com/kazuki388/Threads/internal/services/rate"
	"github.com/kazuki388/Threads/internal/services/stats"
	"github.com/kazuki388/Threads/internal/services/timeouts"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	session  *discordinfra.Session
	gateway  *gateway

	banSvc          *bans.Service
	grantSvc        *grants.Service
	statsSvc        *stats.Service
	featuredSvc     *featured.Service
	aimodSvc        *aimod.Service
	timeoutSvc      *timeouts.Service
	sanitizer       *links.Sanitizer
	logSvc          *actionlog.Service
	archive         *evidence.Archive
	featuredHistory *pgrepo.FeaturedRepo
	rotationJob     *rotation.Job

	allowedChannels map[string]struct{}

	webhookMu sync.Mutex
	webhooks  map[string]*discordgo.Webhook
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	redisClient := redisrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	session, err := discordinfra.New(cfg.Discord.Token)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init discord session: %w", err)
	}

	gw := newGateway(session, cfg.Discord.GuildID)

	banRepo := pgrepo.NewBanRepo(pool)
	grantRepo := pgrepo.NewGrantRepo(pool)
	statsRepo := pgrepo.NewStatsRepo(pool)
	actionRepo := pgrepo.NewActionLogRepo(pool)
	timeoutRepo := pgrepo.NewTimeoutRepo(pool)
	featuredRepo := pgrepo.NewFeaturedRepo(pool)

	banCache := redisrepo.NewBanCacheRepo(redisClient)
	rateRepo := redisrepo.NewRateRepo(redisClient)
	riskRepo := redisrepo.NewRiskRepo(redisClient)

	banSvc := bans.NewService(banRepo, banCache)
	grantSvc := grants.NewService(grantRepo, cfg.Discord.RoleGrants)
	statsSvc := stats.NewService(statsRepo, cfg.Rotation, logger)
	featuredSvc := featured.NewService(gw, statsSvc, cfg.Discord.FeaturedForums, cfg.Discord.FeaturedTag, logger)
	featuredSvc.AttachHistory(featuredRepo)
	timeoutSvc := timeouts.NewService(riskRepo, timeoutRepo, gw, timeouts.Config{
		Steps:     cfg.Timeouts.Steps,
		RiskDecay: cfg.Timeouts.RiskDecay,
	}, logger)
	logSvc := actionlog.NewService(actionRepo, gw, actionlog.Config{
		LogChannelID: cfg.Discord.LogChannelID,
		LogForumID:   cfg.Discord.LogForumID,
		LogPostID:    cfg.Discord.LogPostID,
		AppealURL:    cfg.Discord.AppealURL,
	}, logger)

	var aimodSvc *aimod.Service
	if cfg.Groq.Enabled {
		groqClient, err := groqinfra.NewClient(groqinfra.Config{
			APIKey:     cfg.Groq.APIKey,
			BaseURL:    cfg.Groq.BaseURL,
			Model:      cfg.Groq.Model,
			Timeout:    cfg.Groq.Timeout,
			MaxRetries: cfg.Groq.MaxRetries,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init groq client: %w", err)
		}
		limiter := rate.NewLimiter(rateRepo, cfg.Groq.ScansPerMin, cfg.Groq.ScansPer10s)
		aimodSvc = aimod.NewService(groqClient, limiter, cfg.Groq.MinSeverity, logger)
	} else {
		logger.Warn("ai moderation disabled, messages will not be scanned")
		aimodSvc = aimod.NewService(nil, nil, cfg.Groq.MinSeverity, logger)
	}

	var archive *evidence.Archive
	if cfg.S3.Endpoint != "" {
		s3Client, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init s3 for bot app: %w", err)
		}
		archive = evidence.NewArchive(s3Client, cfg.S3.Bucket)
	} else {
		logger.Warn("s3 endpoint is empty, evidence archiving disabled")
	}

	allowed := make(map[string]struct{}, len(cfg.Discord.AllowedChannels))
	for _, id := range cfg.Discord.AllowedChannels {
		allowed[id] = struct{}{}
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		postgres:        pool,
		redis:           redisClient,
		session:         session,
		gateway:         gw,
		banSvc:          banSvc,
		grantSvc:        grantSvc,
		statsSvc:        statsSvc,
		featuredSvc:     featuredSvc,
		aimodSvc:        aimodSvc,
		timeoutSvc:      timeoutSvc,
		sanitizer:       links.NewSanitizer(cfg.Discord.LinkExemptRole),
		logSvc:          logSvc,
		archive:         archive,
		featuredHistory: featuredRepo,
		rotationJob:     rotation.New(statsSvc, featuredSvc, logger),
		allowedChannels: allowed,
		webhooks:        make(map[string]*discordgo.Webhook),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.logger.Info("discord gateway ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
		if err := a.session.RegisterCommands(a.cfg.Discord.GuildID, commandDefinitions()); err != nil {
			a.logger.Error("failed to register commands", zap.Error(err))
		}
	})
	a.session.AddHandler(a.handleInteraction)
	a.session.AddHandler(a.handleMessageCreate)
	a.session.AddHandler(a.handleThreadCreate)

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer func() {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("failed to close discord gateway", zap.Error(err))
		}
	}()

	a.logger.Info("bot app started")

	if err := a.runRotationLoop(ctx); err != nil {
		return err
	}

	a.logger.Info("bot app stopped")
	return nil
}

// runRotationLoop reschedules itself with the interval the threshold
// adjustment reports, so a busy guild rotates more often than a quiet one.
func (a *App) runRotationLoop(ctx context.Context) error {
	interval := a.cfg.Rotation.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			next, err := a.rotationJob.Run(ctx)
			if err != nil {
				a.logger.Error("rotation pass failed", zap.Error(err))
			}
			if next > 0 {
				interval = next
			}
			timer.Reset(interval)
		}
	}
}

func (a *App) channelAllowed(channelID, parentID string) bool {
	if len(a.allowedChannels) == 0 {
		return true
	}
	if _, ok := a.allowedChannels[channelID]; ok {
		return true
	}
	if parentID != "" {
		if _, ok := a.allowedChannels[parentID]; ok {
			return true
		}
	}
	return false
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
