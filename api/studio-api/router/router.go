// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package studio_routers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	healthCheckApi "github.com/rapidaai/studio/api/studio-api/api/health"
	sessionApi "github.com/rapidaai/studio/api/studio-api/api/session"
	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/connectors"
	"github.com/rapidaai/studio/pkg/utils"
)

// NewEngine builds the gin engine with recovery and cors.
func NewEngine(cfg *config.AppConfig, logger commons.Logger) *gin.Engine {
	if utils.FromEnvironmentStr(cfg.Environment) == utils.PRODUCTION {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition", "Content-Length"},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}))
	engine.Use(requestLogger(logger))
	return engine
}

func requestLogger(logger commons.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, conns ...connectors.Connector) {
	logger.Info("Internal HealthCheckRoutes and Connectors added to engine.")
	apiv1 := engine.Group("")
	hcApi := healthCheckApi.New(cfg, logger, conns...)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
	}
}

func SessionRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, api *sessionApi.SessionApi) {
	logger.Info("SessionRoutes added to engine.")
	apiv1 := engine.Group("/v1/session")
	{
		apiv1.POST("/", api.BeginSession)
		apiv1.DELETE("/", api.EndSession)
		apiv1.GET("/", api.GetSession)
		apiv1.GET("/recording", api.DownloadRecording)
		apiv1.POST("/recording/save", api.SaveRecording)
		apiv1.POST("/transcription/retry", api.RetryTranscription)
		apiv1.GET("/transcription/clip", api.DownloadClip)
		apiv1.POST("/summary", api.Summarize)
		apiv1.GET("/events", api.Events)
	}
	engine.GET("/v1/sessions", api.ListSessions)
}
