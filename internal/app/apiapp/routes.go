package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/config"
	actionlogsvc "github.com/kazuki388/Threads/internal/services/actionlog"
	adminauthsvc "github.com/kazuki388/Threads/internal/services/adminauth"
	banssvc "github.com/kazuki388/Threads/internal/services/bans"
	grantssvc "github.com/kazuki388/Threads/internal/services/grants"
	statssvc "github.com/kazuki388/Threads/internal/services/stats"
	"github.com/kazuki388/Threads/internal/transport/http/handlers"
)

type Dependencies struct {
	AdminAuthService *adminauthsvc.Service
	FeaturedHistory  handlers.FeaturedLister
	BanService       *banssvc.Service
	GrantService     *grantssvc.Service
	StatsService     *statssvc.Service
	ActionLogService *actionlogsvc.Service
	Logger           *zap.Logger
	Config           config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	bansHandler := handlers.NewBansHandler(deps.BanService)
	grantsHandler := handlers.NewGrantsHandler(deps.GrantService)
	statsHandler := handlers.NewStatsHandler(deps.StatsService, deps.FeaturedHistory,
		deps.Config.Discord.FeaturedForums, deps.Config.Discord.FeaturedTag)
	actionsHandler := handlers.NewActionsHandler(deps.ActionLogService)

	r.Get("/healthz", healthHandler.Handle)

	r.Route("/v1", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(deps.AdminAuthService, deps.Logger))

		r.Get("/bans", bansHandler.List)
		r.Get("/grants", grantsHandler.List)
		r.Get("/stats", statsHandler.List)
		r.Get("/featured", statsHandler.Featured)
		r.Get("/actions", actionsHandler.List)
	})
}
