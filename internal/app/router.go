package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Vitorhlem/TruCar/internal/auth"
	"github.com/Vitorhlem/TruCar/internal/components"
	"github.com/Vitorhlem/TruCar/internal/costs"
	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/maintenance"
	"github.com/Vitorhlem/TruCar/internal/parts"
	"github.com/Vitorhlem/TruCar/internal/shared"
	"github.com/Vitorhlem/TruCar/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	PartsHandler       *parts.Handler
	InventoryHandler   *inventory.Handler
	ComponentsHandler  *components.Handler
	CostsHandler       *costs.Handler
	MaintenanceHandler *maintenance.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with TruCar defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		params.AuthHandler.MountRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(RequireUser)
			params.PartsHandler.MountRoutes(protected)
			params.InventoryHandler.MountRoutes(protected)
			params.ComponentsHandler.MountRoutes(protected)
			params.CostsHandler.MountRoutes(protected)
			params.MaintenanceHandler.MountRoutes(protected)
			if params.JobHandler != nil {
				params.JobHandler.MountRoutes(protected)
			}
		})
	})

	return r
}
