package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"equiplend/internal/config"
	"equiplend/internal/events"
	"equiplend/internal/middleware"
	"equiplend/internal/modules/booking"
	"equiplend/internal/modules/equipment"
	jwtsvc "equiplend/internal/pkg/jwt"
	"equiplend/internal/pkg/logger"
)

type routerDeps struct {
	log       *logger.Logger
	jwt       *jwtsvc.Service
	hub       *events.Hub
	registry  *prometheus.Registry
	bookings  *booking.Handler
	equipment *equipment.Handler
	origins   []string
	health    []func(context.Context) error

	// limiter is nil when Redis is not configured.
	limiter   middleware.WindowLimiter
	rateLimit config.RateLimitConfig
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(d.log),
		middleware.ErrorLogger(d.log),
		middleware.CORS(d.origins),
	)

	r.GET("/health", func(c *gin.Context) {
		for _, check := range d.health {
			if err := check(c.Request.Context()); err != nil {
				d.log.Error(c.Request.Context(), "health check failed", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))
	r.GET("/ws/equipment/:id", middleware.JWTAuthQuery(d.jwt), d.hub.ServeEquipmentFeed)

	var createMW []gin.HandlerFunc
	if d.limiter != nil {
		createMW = append(createMW, middleware.RateLimit(d.limiter, "create_booking", d.rateLimit.Bookings, d.rateLimit.Window, d.log))
	}

	v1 := r.Group("/api/v1")
	{
		// public
		d.equipment.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.jwt))

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(d.jwt), middleware.AdminOnly())

		d.bookings.RegisterRoutes(v1, protected, admin, createMW...)
	}

	return r
}
