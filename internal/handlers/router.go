package handlers

import (
	"time"

	"spinwheel/internal/services"

	"github.com/gin-gonic/gin"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter builds the gin engine serving the wheel API.
func NewRouter(service *services.WheelService, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), MetricsMiddleware())
	if len(opts.CORSOrigins) > 0 {
		r.Use(CORSMiddleware(opts.CORSOrigins))
	}
	r.Use(TimeoutMiddleware(opts.RequestTimeout))

	h := NewHTTPHandler(service)
	h.RegisterPublicRoutes(r)
	h.RegisterRestaurantRoutes(r)
	return r
}
