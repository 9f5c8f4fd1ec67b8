package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/metrics"
)

// Metrics учитывает каждый запрос по шаблону маршрута, а не по сырому пути.
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		collector.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
