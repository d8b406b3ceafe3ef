package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walkup/printq/internal/notify"
)

var startedAt = time.Now()

type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(startedAt).Round(time.Second).String(),
	})
}

// WSHandler hands the connection to the hub; room membership is negotiated
// over the socket itself with joinShopRoom messages.
func WSHandler(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	}
}
