package server

import (
	"log/slog"
	"net/http"

	"bases-server/internal/base"
	baseHandlers "bases-server/internal/base/handlers"
	"bases-server/internal/middleware"
	"bases-server/internal/movement"
	movementHandlers "bases-server/internal/movement/handlers"
	serverHandlers "bases-server/internal/server/handlers"
	"bases-server/internal/shared/database"
	sharedredis "bases-server/internal/shared/redis"
	"bases-server/internal/spawn"
	spawnHandlers "bases-server/internal/spawn/handlers"
	"bases-server/internal/template"
	templateHandlers "bases-server/internal/template/handlers"
	"bases-server/internal/upgrade"
	upgradeHandlers "bases-server/internal/upgrade/handlers"
)

type Routes struct {
	db              *database.DB
	redis           *sharedredis.Client
	baseService     *base.Service
	upgradeService  *upgrade.Service
	movementService *movement.Service
	spawnService    *spawn.Service
	templateRepo    *template.Repository
	logger          *slog.Logger
}

func NewRoutes(
	db *database.DB,
	redis *sharedredis.Client,
	baseService *base.Service,
	upgradeService *upgrade.Service,
	movementService *movement.Service,
	spawnService *spawn.Service,
	templateRepo *template.Repository,
	logger *slog.Logger,
) *Routes {
	return &Routes{
		db:              db,
		redis:           redis,
		baseService:     baseService,
		upgradeService:  upgradeService,
		movementService: movementService,
		spawnService:    spawnService,
		templateRepo:    templateRepo,
		logger:          logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.redis)
	baseHandler := baseHandlers.NewBaseHandler(r.baseService, r.upgradeService)
	upgradeHandler := upgradeHandlers.NewUpgradeHandler(r.upgradeService)
	movementHandler := movementHandlers.NewMovementHandler(r.movementService)
	spawnHandler := spawnHandlers.NewSpawnHandler(r.spawnService)
	templateHandler := templateHandlers.NewTemplateHandler(r.templateRepo)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.HandleFunc("/api/templates/{type}", templateHandler.ListByType)

	// Player endpoints (identified callers only)
	mux.Handle("/api/bases", middleware.Identity(http.HandlerFunc(baseHandler.Collection)))
	mux.Handle("/api/bases/{id}", middleware.Identity(http.HandlerFunc(baseHandler.Get)))
	mux.Handle("/api/bases/{id}/move", middleware.Identity(http.HandlerFunc(movementHandler.Move)))
	mux.Handle("/api/bases/{id}/upgrade", middleware.Identity(http.HandlerFunc(upgradeHandler.Start)))
	mux.Handle("/api/upgrades/{id}", middleware.Identity(http.HandlerFunc(upgradeHandler.Get)))
	mux.Handle("/api/spawn/select", middleware.Identity(http.HandlerFunc(spawnHandler.Select)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/templates/{type}"},
		"player_endpoints", []string{
			"/api/bases",
			"/api/bases/{id}",
			"/api/bases/{id}/move",
			"/api/bases/{id}/upgrade",
			"/api/upgrades/{id}",
			"/api/spawn/select",
		},
	)

	return mux
}
