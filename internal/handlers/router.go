package handlers

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownie44l1/depth-api/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// NewRouter wires the endpoints:
//
//	GET  /health        - health check
//	POST /predict       - raw tensor prediction
//	POST /predict/image - depth map from an image upload
//	GET  /metrics       - Prometheus metrics from gatherer
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), h.accessLog())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "GET", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader, "X-Depth-Min", "X-Depth-Max"},
	}))

	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}

// accessLog counts and logs every request.
func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		h.metrics.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		h.log.Debug("request",
			logger.String("method", c.Request.Method),
			logger.String("path", endpoint),
			logger.Int("status", status),
			logger.String("request_id", requestID(c)),
			logger.Duration("elapsed", time.Since(start)))
	}
}
