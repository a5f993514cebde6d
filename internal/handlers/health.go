package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborcare/notify/pkg/response"
)

// Health returns a simple status payload useful for readiness checks.
func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status":    "ok",
			"service":   service,
			"timestamp": time.Now().UTC(),
		})
	}
}
