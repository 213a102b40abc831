// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
)

// NewHealthCheck creates a Fiber healthcheck middleware with Kubernetes-style
// endpoints.
//
// Endpoints:
//   - GET /livez  - Liveness probe (app is running)
//   - GET /readyz - Readiness probe (cache storage and primary source reachable)
//
// The readiness probe is injected because the cache backend is pluggable:
// depending on configuration it pings Redis or Postgres, plus the primary
// catalog. This middleware should be registered BEFORE other routes.
func NewHealthCheck(ready func() bool) fiber.Handler {
	return healthcheck.New(healthcheck.Config{
		LivenessEndpoint: "/livez",
		LivenessProbe: func(_ *fiber.Ctx) bool {
			return true
		},

		ReadinessEndpoint: "/readyz",
		ReadinessProbe: func(_ *fiber.Ctx) bool {
			if ready == nil {
				return false
			}

			return ready()
		},
	})
}
