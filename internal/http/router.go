/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nvictor/jiraiya/internal/config"
	"github.com/nvictor/jiraiya/internal/services"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc *services.Service, sl *services.SyncLog) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc, sl)

	r.GET("/healthz", h.Healthz)
	r.GET("/quarters", h.Quarters)
	r.GET("/months", h.Months)
	r.GET("/outcomes", h.Outcomes)
	r.PUT("/outcomes", h.UpdateOutcomes)
	r.GET("/logs", h.Logs)
	r.POST("/sync", h.Sync)
	r.GET("/sync/status", h.SyncStatus)
	r.POST("/reclassify", h.Reclassify)
	r.POST("/admin/reset", h.Reset)

	return r
}
