package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ActiveSessionsFunc reports the number of in-flight sessions; Service
// satisfies it via ActiveSessions.
type ActiveSessionsFunc func() int64

// ActiveSessionUUIDsFunc reports the correlation id of every in-flight
// session; Service satisfies it via ActiveSessionUUIDs.
type ActiveSessionUUIDsFunc func() []string

// NewAdminRouter builds the admin HTTP surface: health/readiness probes,
// the Prometheus scrape endpoint, and a status endpoint summarizing the
// running server, grounded on the teacher's RegisterRoutesTMP.
func NewAdminRouter(node string, logger zerolog.Logger, started time.Time, activeSessions ActiveSessionsFunc, activeSessionUUIDs ActiveSessionUUIDsFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(RequestMetricsMiddleware(node))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).String(),
			"node":   node,
		})
	})

	router.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready": true,
			"node":  node,
		})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"node":              node,
			"uptime":            time.Since(started).String(),
			"active_sessions":   activeSessions(),
			"session_uuids":     activeSessionUUIDs(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
