package main

import (
	"database/sql"
	"net/http"
	"time"

	"bus-booking/internal/httpapi"
	"bus-booking/internal/rbac"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	handlers       httpapi.Handlers
	authMW         gin.HandlerFunc
	db             *sql.DB
	rdb            *redis.Client
	idempotencyTTL time.Duration
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	buses := v1.Group("/buses")
	{
		buses.GET("/search", h.SearchBuses)
		buses.GET("/:bus_id", h.GetBus)
		buses.GET("/:bus_id/seats", h.SeatMap)
	}

	// protected API group
	protected := v1.Group("")
	protected.Use(d.authMW)
	protected.Use(rbac.RequireAnyRole(rbac.RolePassenger))
	{
		protected.GET("/me", h.Me)

		wallet := protected.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.POST("/deposits", httpapi.Idempotency(d.rdb, "deposit", d.idempotencyTTL), h.Deposit)
			wallet.POST("/withdrawals", h.Withdraw)
			wallet.GET("/transactions", h.Transactions)
			wallet.GET("/summary", h.WalletSummary)
		}

		tickets := protected.Group("/tickets")
		{
			tickets.POST("", httpapi.Idempotency(d.rdb, "booking", d.idempotencyTTL), h.BookTicket)
			tickets.GET("", h.ListTickets)
			tickets.GET("/:ticket_id", h.GetTicket)
			tickets.GET("/:ticket_id/receipt", h.TicketReceipt)
			tickets.POST("/:ticket_id/cancel", h.CancelTicket)
			tickets.PUT("/:ticket_id/passengers/:passenger_id", h.UpdatePassenger)
		}
	}

	// ADMIN routes
	admin := v1.Group("/admin")
	admin.Use(d.authMW)
	admin.Use(rbac.RequireStaff())
	{
		admin.POST("/routes", h.CreateRoute)

		admin.POST("/buses", h.CreateBus)
		admin.GET("/buses", h.ListBuses)
		admin.PUT("/buses/:bus_id", h.UpdateBus)
		admin.POST("/buses/:bus_id/cancel", h.CancelBus)
		admin.GET("/buses/:bus_id/bookings", h.BusBookings)

		admin.POST("/tickets/:ticket_id/cancel", h.AdminCancelTicket)
		admin.POST("/tickets/:ticket_id/complete", h.CompleteTicket)

		admin.POST("/wallets/:user_id/credit", h.AdminCredit)
	}
}
