package handlers

import (
	"context"
	"net/http"
	"time"

	"spinwheel/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const restaurantKey = "restaurant"

// RestaurantMiddleware resolves the :slug or :rid path parameter into the
// restaurant the request is scoped to, and rejects unknown restaurants.
func (h *HTTPHandler) RestaurantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var err error
		ctx := c.Request.Context()
		if slug := c.Param("slug"); slug != "" {
			r, e := h.service.RestaurantBySlug(ctx, slug)
			c.Set(restaurantKey, r)
			err = e
		} else {
			r, e := h.service.Restaurant(ctx, c.Param("rid"))
			c.Set(restaurantKey, r)
			err = e
		}
		if err != nil {
			failWith(c, err)
			return
		}
		c.Next()
	}
}

// TimeoutMiddleware bounds the store calls of a request. A request that
// runs out of time fails with 503 and leaves nothing half-written.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// MetricsMiddleware records each request by route pattern.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// CORSMiddleware allows the public wheel and the staff screens to call the API.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
