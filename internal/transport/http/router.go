package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JeevanMahesha/studio/internal/service"
	"github.com/JeevanMahesha/studio/internal/transport/http/handlers"
	"github.com/JeevanMahesha/studio/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	Metrics  *middleware.HTTPMetrics // nil — без метрик запросов
	BasePath string                  // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(opts.Logger), // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Session(),            // X-Session-Id: фильтры списка живут по сессии
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// profiles
	r.Get("/profiles", h.ListProfiles)
	r.Get("/profiles/options", h.GetProfileOptions)
	r.Get("/profiles/{id}", h.GetProfile)
	r.Post("/profiles", h.CreateProfile)
	r.Patch("/profiles/{id}", h.UpdateProfile)
	r.Delete("/profiles/{id}", h.DeleteProfile)

	// statuses
	r.Get("/statuses", h.ListStatuses)
	r.Post("/statuses", h.CreateStatus)
	r.Patch("/statuses/{id}", h.UpdateStatus)
	r.Delete("/statuses/{id}", h.DeleteStatus)

	// filters
	r.Get("/filters", h.GetFilters)
	r.Patch("/filters", h.PatchFilters)
	r.Delete("/filters", h.ClearFilters)

	r.Get("/mutations", h.ListMutations)
}
