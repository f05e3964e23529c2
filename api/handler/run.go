package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/landrec/status"
)

// Run returns a handler for GET /api/v1/run.
//
// Reports the live pipeline snapshot: phase, current row, and the running
// attempted/succeeded/failed tally.
func Run(tracker *status.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, tracker.Snapshot())
	}
}
