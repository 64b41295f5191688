package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/simplestore/api/internal/config"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
	"github.com/simplestore/api/internal/handler"
	mw "github.com/simplestore/api/internal/middleware"
	"github.com/simplestore/api/internal/service"
	"github.com/simplestore/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share one store factory: a plain pool-backed Queries for
	// reads, per-transaction instances for the multi-statement flows.
	salesOrderService := service.NewSalesOrderService(pool, func(db database.DBTX) service.SalesOrderStore {
		return database.New(db)
	})
	purchaseOrderService := service.NewPurchaseOrderService(pool, func(db database.DBTX) service.PurchaseOrderStore {
		return database.New(db)
	})
	returnService := service.NewReturnService(pool, func(db database.DBTX) service.ReturnStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		handler.NewCategoryHandler(queries).RegisterRoutes(r)
		handler.NewCustomerHandler(queries).RegisterRoutes(r)
		handler.NewVendorHandler(queries).RegisterRoutes(r)

		productHandler := handler.NewProductHandler(queries, pool, func(db database.DBTX) handler.ProductStore {
			return database.New(db)
		})
		productHandler.RegisterRoutes(r)

		salesOrderHandler := handler.NewSalesOrderHandler(queries, salesOrderService, hub)
		salesOrderHandler.RegisterRoutes(r)
		purchaseOrderHandler := handler.NewPurchaseOrderHandler(queries, purchaseOrderService, hub)
		purchaseOrderHandler.RegisterRoutes(r)
		returnHandler := handler.NewReturnHandler(queries, returnService)
		returnHandler.RegisterRoutes(r)

		paymentHandler := handler.NewPaymentHandler(queries, pool, func(db database.DBTX) handler.PaymentStore {
			return database.New(db)
		}, hub)
		paymentHandler.RegisterRoutes(r)

		reportHandler := handler.NewReportHandler(queries)
		reportHandler.RegisterRoutes(r)

		settingsHandler := handler.NewSettingsHandler(queries)
		settingsHandler.RegisterRoutes(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			handler.NewUserHandler(queries).RegisterRoutes(r)
			reportHandler.RegisterFinancialRoutes(r)
			settingsHandler.RegisterAdminRoutes(r)
			salesOrderHandler.RegisterAdminRoutes(r)
			purchaseOrderHandler.RegisterAdminRoutes(r)
			returnHandler.RegisterAdminRoutes(r)
		})
	})

	return r
}
