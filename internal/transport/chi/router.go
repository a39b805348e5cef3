package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/metrics"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger         *zap.Logger
	APIKeys        []string // guard product writes; empty disables auth
	AllowedOrigins []string
}

// Handler builds the full HTTP handler: routes, middleware, CORS and server spans.
func (s *Server) Handler(opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gochi.NewRouter()
	r.Use(jsonRecoverer(log))
	r.Use(chimw.RequestID)
	r.Use(wideEventMiddleware(log))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r gochi.Router) {
		r.Get("/search", s.Search)
		r.Post("/chat", s.Chat)

		r.Route("/products", func(r gochi.Router) {
			r.Get("/", s.ListProducts)
			r.Get("/categories", s.Categories)
			r.Get("/semantic", s.Semantic)
			r.Get("/{id}", s.GetProduct)

			r.Group(func(r gochi.Router) {
				r.Use(BearerAuthMiddleware(opts.APIKeys))
				r.Post("/", s.CreateProduct)
				r.Put("/{id}", s.UpdateProduct)
				r.Delete("/{id}", s.DeleteProduct)
			})
		})
	})

	var h http.Handler = r
	if len(opts.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
		}).Handler(h)
	}

	return otelhttp.NewHandler(h, "http.request",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
