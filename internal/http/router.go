// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sokoni/internal/http/handlers"
	"sokoni/internal/http/middleware"
	"sokoni/internal/modules/dispatch"
	"sokoni/internal/modules/order"
	"sokoni/internal/modules/returns"
	"sokoni/internal/modules/tracking"
)

type RouterDeps struct {
	Order    *order.Service
	Dispatch *dispatch.Service
	Tracking *tracking.Service
	Returns  *returns.Service
}

func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.Logging())

	orderHandler := handlers.NewOrderHandler(deps.Order)
	dispatchHandler := handlers.NewDispatchHandler(deps.Dispatch, deps.Tracking)
	returnsHandler := handlers.NewReturnsHandler(deps.Returns)

	api := engine.Group("/api")

	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/status", orderHandler.Transition)
	api.POST("/orders/:id/rating", orderHandler.SubmitRating)
	api.GET("/orders/:id/return-eligibility", returnsHandler.Eligibility)
	api.POST("/orders/:id/returns", returnsHandler.File)
	api.GET("/orders/:id/returns", returnsHandler.ListByOrder)

	api.POST("/returns/:id/approve", returnsHandler.Approve)
	api.POST("/returns/:id/reject", returnsHandler.Reject)
	api.POST("/returns/:id/complete", returnsHandler.Complete)

	api.POST("/dispatches", dispatchHandler.Create)
	api.GET("/dispatches/:id", dispatchHandler.Get)
	api.POST("/dispatches/:id/assign", dispatchHandler.Assign)
	api.POST("/dispatches/:id/status", dispatchHandler.Transition)
	api.POST("/dispatches/:id/pings", dispatchHandler.RecordPing)
	api.GET("/dispatches/:id/location", dispatchHandler.Location)
	api.GET("/dispatches/:id/pings", dispatchHandler.History)

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return engine
}
