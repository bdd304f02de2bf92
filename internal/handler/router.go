package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/codetutor/backend/internal/handler/ask"
	"github.com/zhouzirui/codetutor/backend/internal/handler/broker"
	"github.com/zhouzirui/codetutor/backend/internal/handler/mode"
	middlewarePkg "github.com/zhouzirui/codetutor/backend/internal/middleware"
	"github.com/zhouzirui/codetutor/backend/internal/model/api"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	modeModel "github.com/zhouzirui/codetutor/backend/internal/model/mode"
	brokerService "github.com/zhouzirui/codetutor/backend/internal/service/broker"
	routerService "github.com/zhouzirui/codetutor/backend/internal/service/router"
	"github.com/zhouzirui/codetutor/backend/pkg/utils"
)

// Deps 汇总路由所需的服务。
type Deps struct {
	Credentials credential.Store
	Format      credential.Format
	Pool        *credential.Pool
	Broker      *brokerService.Service
	Router      *routerService.Service
	Modes       modeModel.Store
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, api.HealthResponse{
			Status:         "ok",
			ActiveTokens:   deps.Broker.ActiveTokens(),
			SharedPoolSize: deps.Pool.Size(),
		})
	})

	broker.New(deps.Broker, deps.Credentials, deps.Format).RegisterRoutes(r)
	ask.New(deps.Router).RegisterRoutes(r)
	mode.New(deps.Modes).RegisterRoutes(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})

	return r
}
