// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/handlers"
	"dev.helix.brainbox/internal/middleware"
	"dev.helix.brainbox/internal/observability"
	"dev.helix.brainbox/internal/rag"
)

// defaultMaxBodyBytes caps any request body, uploads included.
const defaultMaxBodyBytes = 128 << 20

// Options tune the engine.
type Options struct {
	// Mode is a gin mode name; empty means release.
	Mode string
	// MaxBodyBytes caps request bodies; zero uses the default.
	MaxBodyBytes int64
	// DisableRequestLogging drops the per-request log line.
	DisableRequestLogging bool
}

// New builds the engine with middleware and all routes registered. gatherer
// may be nil to skip the metrics endpoint.
func New(h *handlers.Handler, metrics *observability.Metrics, gatherer prometheus.Gatherer, logger *logrus.Logger, opts Options) *gin.Engine {
	mode := opts.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(logger))
	if !opts.DisableRequestLogging {
		engine.Use(middleware.RequestLogger(logger))
	}
	engine.Use(
		middleware.Metrics(metrics),
		middleware.BodySizeLimit(maxBody),
	)

	engine.GET("/", h.Root)
	engine.GET("/health", h.Health)
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api")
	{
		api.POST("/create-brain", h.CreateBrain)
		api.GET("/list-brains", h.ListBrains)
		api.POST("/evaluate-file", h.EvaluateFile)
		api.POST("/evaluate_response", h.EvaluateResponse)

		brain := api.Group("/:brain_id")
		{
			brain.POST("/upload", h.Upload)
			brain.GET("/list-files", h.ListFiles)
			brain.POST("/hybrid", h.AnswerStrategy(rag.StrategyHybrid))
			brain.POST("/sparse", h.AnswerStrategy(rag.StrategySparse))
			brain.POST("/dense", h.AnswerStrategy(rag.StrategyDense))
			brain.POST("/hyde", h.AnswerStrategy(rag.StrategyHyDE))
			brain.POST("/all", h.AnswerAll)
		}
	}
	return engine
}
