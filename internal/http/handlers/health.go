package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadyCheck is one dependency checked by /readyz.
type ReadyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []ReadyCheck
	extras func() gin.H
}

// NewHealthHandler builds the liveness and readiness handler. extras, when set, adds informational fields to /readyz.
func NewHealthHandler(checks []ReadyCheck, extras func() gin.H) *HealthHandler {
	return &HealthHandler{checks: checks, extras: extras}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 1*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}

	for _, c := range h.checks {
		if err := c.Ping(cctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[c.Name] = "down"
			continue
		}
		deps[c.Name] = "up"
	}

	body := gin.H{"status": "ready", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	if h.extras != nil {
		for k, v := range h.extras() {
			body[k] = v
		}
	}

	ctx.JSON(status, body)
}
