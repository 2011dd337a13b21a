// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package health_check_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/studio/config"
	"github.com/rapidaai/studio/pkg/commons"
	"github.com/rapidaai/studio/pkg/connectors"
)

type healthCheckApi struct {
	cfg        *config.AppConfig
	logger     commons.Logger
	connectors []connectors.Connector
}

func New(cfg *config.AppConfig, logger commons.Logger, conns ...connectors.Connector) *healthCheckApi {
	return &healthCheckApi{cfg: cfg, logger: logger, connectors: conns}
}

// Healthz reports the process is serving.
func (h *healthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true, "service": h.cfg.Name, "version": h.cfg.Version})
}

// Readiness reports whether every backing connection answers.
func (h *healthCheckApi) Readiness(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for _, conn := range h.connectors {
		if conn == nil {
			continue
		}
		ok := conn.IsConnected(c.Request.Context())
		checks[conn.Name()] = ok
		if !ok {
			h.logger.Warnf("readiness: %s is not connected", conn.Name())
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"ready": status == http.StatusOK, "connectors": checks})
}
