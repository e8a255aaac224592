package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "patient-roster/docs"
	"patient-roster/internal/middleware"
	"patient-roster/internal/platform/logger"
	"patient-roster/internal/platform/metrics"
	"patient-roster/internal/session"
)

type Options struct {
	Registry *session.Registry

	// Opcional: sin Metrics no se expone /metrics.
	Metrics *metrics.Recorder
	Logger  logger.Logger

	// Reloj para calcular edades; nil = time.Now.
	Now func() time.Time
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	session.RegisterRoutes(r, opts.Registry, opts.Now)

	return r
}
