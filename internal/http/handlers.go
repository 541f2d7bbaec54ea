/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nvictor/jiraiya/internal/config"
	"github.com/nvictor/jiraiya/internal/domain"
	"github.com/nvictor/jiraiya/internal/services"
)

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc *services.Service
	sl  *services.SyncLog

	mu      sync.Mutex
	running bool
	last    domain.Progress
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc *services.Service, sl *services.SyncLog) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc, sl: sl}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) Quarters(c *gin.Context) {
	quarters, err := h.svc.Quarters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, quarters)
}

func (h *Handlers) Months(c *gin.Context) {
	months, err := h.svc.StoryMonths(c.Request.Context(), c.Query("epic"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, months)
}

func (h *Handlers) Outcomes(c *gin.Context) {
	outcomes, err := h.svc.Outcomes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcomes)
}

func (h *Handlers) UpdateOutcomes(c *gin.Context) {
	var outcomes []domain.Outcome
	if err := c.ShouldBindJSON(&outcomes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.UpdateOutcomes(c.Request.Context(), outcomes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) Logs(c *gin.Context) {
	c.JSON(http.StatusOK, h.sl.Entries())
}

// Sync kicks off a background sync detached from the request context.
// Only one run at a time; progress is polled via /sync/status.
func (h *Handlers) Sync(c *gin.Context) {
	h.start(c, h.svc.Sync)
}

func (h *Handlers) Reclassify(c *gin.Context) {
	h.start(c, h.svc.Reclassify)
}

func (h *Handlers) start(c *gin.Context, run func(context.Context, services.ProgressFunc) error) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		return
	}
	h.running = true
	h.last = domain.Progress{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
		}()
		err := run(context.Background(), func(p domain.Progress) {
			h.mu.Lock()
			h.last = p
			h.mu.Unlock()
		})
		if err != nil {
			h.log.Error().Err(err).Msg("sync failed")
			h.sl.Append(services.LevelError, err.Error())
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) SyncStatus(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"running": h.running, "progress": h.last.Fraction, "message": h.last.Message})
}

func (h *Handlers) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
