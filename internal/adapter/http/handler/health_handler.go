package handler

import (
	"net/http"
	"time"

	"payment-orchestrator/internal/adapter/http/dto"
	"payment-orchestrator/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// ServiceName is reported by GET /health.
const ServiceName = "payment-service"

// HealthCheck handles GET /health. It answers 503 unless every dependency
// responded in time.
func HealthCheck(svc ports.HealthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := svc.Check(c.Request.Context())

		deps := make(map[string]dto.DependencyResponse, len(report.Dependencies))
		for name, d := range report.Dependencies {
			deps[name] = dto.DependencyResponse{
				Status:    d.Status,
				Error:     d.Error,
				LatencyMS: d.Latency.Milliseconds(),
			}
		}

		httpCode := http.StatusOK
		if !report.Healthy() {
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, dto.HealthResponse{
			Status:       report.Status,
			Service:      ServiceName,
			Dependencies: deps,
			Timestamp:    report.CheckedAt.UTC().Format(time.RFC3339),
		})
	}
}
