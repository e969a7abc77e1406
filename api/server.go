/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/classes/*      Classes, roster, roll-call
  /api/students/*     Student records
  /api/staff/*        Staff users and their leave history
  /api/menus/*        Menu templates and active-menu resolution
  /api/dishes/*       Dishes, composition, cost recompute
  /api/ingredients/*  Ingredient reference data
  /api/attendance/*   Daily attendance records
  /api/tickets/*      Meal tickets
  /api/invoices/*     Tuition invoice generation and lifecycle
  /api/leave/*        Staff leave workflow

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Class routes
		r.Route("/classes", func(r chi.Router) {
			r.Get("/", h.ListClasses)
			r.Post("/", h.CreateClass)
			r.Get("/{id}", h.GetClass)
			r.Get("/{id}/students", h.ListClassStudents)
			r.Post("/{id}/roll-call", h.RollCall)
		})

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
		})

		// Staff routes
		r.Route("/staff", func(r chi.Router) {
			r.Post("/", h.CreateStaffUser)
			r.Get("/{id}/leave", h.ListStaffLeave)
		})

		// Menu routes
		r.Route("/menus", func(r chi.Router) {
			r.Get("/", h.ListMenus)
			r.Post("/", h.CreateMenu)
			r.Get("/active", h.ActiveMenus)
			r.Post("/{id}/dishes/{dishID}", h.AssignMenuDish)
		})

		// Dish routes
		r.Route("/dishes", func(r chi.Router) {
			r.Get("/", h.ListDishes)
			r.Post("/", h.CreateDish)
			r.Get("/{id}", h.GetDish)
			r.Post("/{id}/recompute", h.RecomputeDish)
			r.Put("/{id}/ingredients/{ingredientID}", h.SetDishIngredient)
			r.Delete("/{id}/ingredients/{ingredientID}", h.RemoveDishIngredient)
		})

		// Ingredient routes
		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", h.ListIngredients)
			r.Post("/", h.CreateIngredient)
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Post("/", h.CreateAttendance)
			r.Put("/{id}", h.UpdateAttendance)
			r.Delete("/{id}", h.DeleteAttendance)
		})

		// Ticket routes
		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", h.ListTickets)
			r.Post("/{id}/consume", h.ConsumeTicket)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/generate", h.GenerateInvoices)
			r.Put("/{id}/status", h.UpdateInvoiceStatus)
		})

		// Leave routes
		r.Route("/leave", func(r chi.Router) {
			r.Post("/", h.CreateLeave)
			r.Get("/pending", h.ListPendingLeave)
			r.Put("/{id}", h.UpdateLeave)
			r.Delete("/{id}", h.DeleteLeave)
			r.Post("/{id}/approve", h.ApproveLeave)
			r.Post("/{id}/reject", h.RejectLeave)
		})
	})

	return r
}
