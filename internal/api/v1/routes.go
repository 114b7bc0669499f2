package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/curalab/fedbench/internal/api/handlers"
)

func registerEvaluationRoutes(router *gin.RouterGroup, evaluationHandler *handlers.EvaluationHandler) {
	evaluations := router.Group("/evaluations")
	{
		evaluations.POST("", evaluationHandler.CreateRun)
		evaluations.GET("", evaluationHandler.ListRuns)
		evaluations.GET("/:id", evaluationHandler.GetRun)
		evaluations.POST("/:id/start", evaluationHandler.StartRun)
		evaluations.GET("/:id/folds", evaluationHandler.GetFoldResults)
		evaluations.GET("/:id/report", evaluationHandler.GetReport)
	}
}

func RegisterRoutes(api *gin.RouterGroup, evaluationHandler *handlers.EvaluationHandler) {
	registerEvaluationRoutes(api, evaluationHandler)
}
