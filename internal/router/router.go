package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mariahavens/pos-api/internal/config"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/mariahavens/pos-api/internal/handler"
	mw "github.com/mariahavens/pos-api/internal/middleware"
	"github.com/mariahavens/pos-api/internal/order"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/mariahavens/pos-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, store *postgres.Store, manager *order.Manager, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(store, cfg.JWTSecret)
	r.Route("/auth", authHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Orders
		orderHandler := handler.NewOrderHandler(manager, store, store, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Payments and receipts hang off /orders paths but gate
		// differently, so they register at the top level.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager, enum.UserRoleCashier))
			paymentHandler := handler.NewPaymentHandler(store, manager, store, hub)
			paymentHandler.RegisterRoutes(r)
		})
		receiptHandler := handler.NewReceiptHandler(manager, store, store)
		receiptHandler.RegisterRoutes(r)

		// Tables
		tableHandler := handler.NewTableHandler(store, hub)
		r.Route("/tables", func(r chi.Router) {
			tableHandler.RegisterReadRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager))
				tableHandler.RegisterWriteRoutes(r)
			})
		})

		// Menu: reads for everyone, writes for managers
		menuHandler := handler.NewMenuHandler(store)
		r.Route("/menu", func(r chi.Router) {
			menuHandler.RegisterReadRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager))
				menuHandler.RegisterWriteRoutes(r)
			})
		})

		// Users (admin/manager only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager))
			userHandler := handler.NewUserHandler(store)
			r.Route("/users", userHandler.RegisterRoutes)
		})
	})

	return r
}
