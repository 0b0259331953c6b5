package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/bookshare-be/internal/api/handlers"
	"github.com/isdelr/bookshare-be/internal/auth"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/isdelr/bookshare-be/internal/websocket"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Hub            *websocket.Hub
	Tokens         *auth.TokenManager
	Accounts       services.AccountServiceProvider
	Catalog        services.CatalogServiceProvider
	Lending        services.LendingServiceProvider
	Events         services.EventServiceProvider
	AllowedOrigins []string
	SecureCookies  bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	accountHandler := handlers.NewAccountHandler(d.Accounts, d.Tokens, d.SecureCookies)
	bookHandler := handlers.NewBookHandler(d.Catalog)
	requestHandler := handlers.NewRequestHandler(d.Lending)
	eventHandler := handlers.NewEventHandler(d.Events)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.AllowedOrigins)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", accountHandler.Register)
			r.Post("/login", accountHandler.Login)
			r.Post("/logout", accountHandler.Logout)
		})

		// Everything below needs a session.
		r.Group(func(r chi.Router) {
			r.Use(d.Tokens.JWTMiddleware())

			r.Get("/me", accountHandler.GetMe)
			r.Get("/ws", wsHandler.Serve)
			r.Get("/events", eventHandler.GetRecent)

			r.Route("/books", func(r chi.Router) {
				r.Get("/", bookHandler.List)
				r.Post("/", bookHandler.Create)
				r.Delete("/", bookHandler.DeleteByTitle)
				r.Get("/mine", bookHandler.ListMine)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", bookHandler.Get)
					r.Delete("/", bookHandler.Delete)
					r.Post("/requests", requestHandler.Create)
					r.Post("/requests/{requester}/accept", requestHandler.Accept)
					r.Post("/requests/{requester}/reject", requestHandler.Reject)
				})
			})

			r.Route("/requests", func(r chi.Router) {
				r.Get("/incoming", requestHandler.Incoming)
				r.Get("/outgoing", requestHandler.Outgoing)
			})
		})
	})

	return r
}
