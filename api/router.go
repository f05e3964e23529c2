// Package api exposes the optional local status server: read-only
// endpoints a deployment can probe while a run is in flight.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/landrec/api/handler"
	"github.com/use-agent/landrec/status"
)

// NewRouter creates a configured Gin engine with the status routes. Both
// endpoints are read-only and unauthenticated; the server is meant to bind
// to a local or private address.
func NewRouter(tracker *status.Tracker, mode string, startTime time.Time) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(startTime))
	v1.GET("/run", handler.Run(tracker))

	return r
}
