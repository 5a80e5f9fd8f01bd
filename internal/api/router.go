package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/virtual-currency-ledger/internal/api/handler"
	"github.com/virtual-currency-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	operationHandler *handler.OperationHandler,
	queryHandler *handler.QueryHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Ledger write operations
		v1.POST("/transfers", operationHandler.Transfer)
		v1.POST("/credits", operationHandler.Credit)
		v1.POST("/debits", operationHandler.Debit)

		// User read operations
		users := v1.Group("/users")
		{
			users.GET("/:id/balances", queryHandler.GetBalances)
			users.GET("/:id/history", queryHandler.GetHistory)
		}

		// Transaction lookups by reference key
		v1.GET("/transactions/:reference", queryHandler.GetTransaction)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
