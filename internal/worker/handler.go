package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the lifecycle routes.
func (c *Controller) RegisterRoutes(r gin.IRouter) {
	r.POST("/start", c.StartHandler)
	r.POST("/stop", c.StopHandler)
	r.GET("/status", c.StatusHandler)
}

func (c *Controller) StartHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": c.Start()})
}

func (c *Controller) StopHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": c.Stop()})
}

func (c *Controller) StatusHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.Status())
}
