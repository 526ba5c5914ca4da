package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/skillgate/attempt-service/internal/services"
	"github.com/skillgate/attempt-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), serviceManager.Export(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/flag", hm.attemptHandler.FlagViolation)
			attempts.GET("/:id/proctoring/export", hm.attemptHandler.ExportProctoringLog)
		}

		tests := v1.Group("/tests")
		{
			tests.GET("/:id/attempts", hm.attemptHandler.ListTestAttempts)
		}
	}
}
