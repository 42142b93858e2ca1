package api

import (
	"chatai-backend/internal/config"
	"chatai-backend/internal/handlers"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	ProfileHandler      *handlers.ProfileHandlers
	ConversationHandler *handlers.ConversationHandlers
	SessionHandler      *handlers.SessionHandlers
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The SSE endpoints hold their connection open; the request timeout
	// has to leave room for long-lived streams.
	r.Use(middleware.Timeout(10 * time.Minute))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		if deps.ProfileHandler != nil {
			r.Route("/profile", func(r chi.Router) {
				r.Get("/", deps.ProfileHandler.HandleGetProfile)
				r.Put("/system-message", deps.ProfileHandler.HandleUpdateSystemMessage)
			})
		} else {
			log.Println("WARN: ProfileHandler dependency is nil, skipping /v1/profile routes.")
		}

		if deps.ConversationHandler != nil {
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", deps.ConversationHandler.HandleListConversations)
				r.Get("/events", deps.ConversationHandler.HandleConversationEvents)
				r.Get("/{conversationID}", deps.ConversationHandler.HandleGetConversation)
				r.Post("/{conversationID}/resume", deps.ConversationHandler.HandleResumeConversation)
				r.Delete("/{conversationID}", deps.ConversationHandler.HandleDeleteConversation)
			})
		} else {
			log.Println("WARN: ConversationHandler dependency is nil, skipping /v1/conversations routes.")
		}

		if deps.SessionHandler != nil {
			r.Route("/session", func(r chi.Router) {
				r.Post("/", deps.SessionHandler.HandleStartSession)
				r.Delete("/", deps.SessionHandler.HandleEndSession)
				r.Get("/messages", deps.SessionHandler.HandleGetSession)
				r.Post("/messages", deps.SessionHandler.HandleSendMessage)
				r.Post("/cancel", deps.SessionHandler.HandleCancelReply)
			})
		} else {
			log.Println("WARN: SessionHandler dependency is nil, skipping /v1/session routes.")
		}
	})

	return r
}
