package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"commentflow/internal/handler"
	"commentflow/internal/httputil"
	authmw "commentflow/internal/transport/http/middleware"
	"commentflow/internal/transport/ws"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	CommentHandler *handler.CommentHandler
	MediaHandler   *handler.MediaHandler // nil when avatar storage is not configured
	WSHandler      *ws.Handler
	JWTSecret      string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
	})

	// Reading comments requires no authentication
	r.Get("/comments", cfg.CommentHandler.List)
	r.Get("/comments/{id}", cfg.CommentHandler.GetByID)
	r.Get("/comments/{id}/replies", cfg.CommentHandler.GetReplies)

	// Real-time subscriber endpoint; anonymous connections allowed
	r.Get("/ws", cfg.WSHandler.Serve)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/me", cfg.AuthHandler.Me)
		if cfg.MediaHandler != nil {
			r.Post("/me/avatar", cfg.MediaHandler.UploadAvatar)
		}

		r.Post("/comments", cfg.CommentHandler.Create)
		r.Patch("/comments/{id}", cfg.CommentHandler.Update)
		r.Delete("/comments/{id}", cfg.CommentHandler.Delete)
		r.Post("/comments/{id}/react", cfg.CommentHandler.React)
	})

	return r
}
