package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"survey-public-api/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

type depStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged concurrently.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			deps = make(map[string]depStatus, len(checkers))
		)
		for _, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				st := depStatus{Status: "healthy"}
				if err := checker.Ping(ctx); err != nil {
					st = depStatus{Status: "unhealthy", Error: err.Error()}
				}
				mu.Lock()
				deps[checker.Name()] = st
				mu.Unlock()
			}()
		}
		wg.Wait()

		status, httpCode := "healthy", http.StatusOK
		for _, d := range deps {
			if d.Status != "healthy" {
				status, httpCode = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
