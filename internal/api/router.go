package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/curalab/fedbench/internal/api/handlers"
	"github.com/curalab/fedbench/internal/api/middleware"
	v1 "github.com/curalab/fedbench/internal/api/v1"
)

func init() {
	// Release mode keeps gin's own debug logging out of the zerolog stream.
	gin.SetMode(gin.ReleaseMode)
}

type Router struct {
	engine   *gin.Engine
	endpoint string
}

func NewRouter(evaluationHandler *handlers.EvaluationHandler, endpoint string) *Router {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.Logging())

	r := &Router{
		engine:   engine,
		endpoint: endpoint,
	}

	r.registerRoutes(evaluationHandler)
	return r
}

func (r *Router) registerRoutes(evaluationHandler *handlers.EvaluationHandler) {
	api := r.engine.Group(r.endpoint)
	v1.RegisterRoutes(api, evaluationHandler)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) AddMiddleware(middleware gin.HandlerFunc) {
	r.engine.Use(middleware)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}
