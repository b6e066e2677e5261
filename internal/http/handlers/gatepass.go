package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/estategate/internal/config"
	"github.com/geocoder89/estategate/internal/domain/gatepass"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/http/middlewares"
	"github.com/geocoder89/estategate/internal/service"
	"github.com/gin-gonic/gin"
)

type PassRegistry interface {
	GenerateEntry(ctx context.Context, caller user.Identity, req service.EntryRequest) (service.IssuedPass, error)
	Validate(ctx context.Context, caller user.Identity, tokenID string) (service.PassDetails, error)
	GenerateExit(ctx context.Context, caller user.Identity, tokenID string) (service.IssuedPass, error)
	Active(ctx context.Context, caller user.Identity) ([]gatepass.VisitorToken, error)
}

type GatePassHandler struct {
	registry PassRegistry
	log      *slog.Logger
}

func NewGatePassHandler(registry PassRegistry, log *slog.Logger) *GatePassHandler {
	return &GatePassHandler{registry: registry, log: log}
}

// GeneratePassRequest takes expiration as raw JSON: both 60 and "60" are accepted.
type GeneratePassRequest struct {
	VisitorName  string          `json:"visitor_name" binding:"required,max=200"`
	VisitorPhone string          `json:"visitor_phone" binding:"required,max=32"`
	Expiration   json.RawMessage `json:"expiration" binding:"required"`
}

type validateResponse struct {
	VisitorName  string `json:"visitor_name"`
	VisitorPhone string `json:"visitor_phone"`
	ExpiresAt    string `json:"expires_at"`
	Purpose      string `json:"purpose"`
}

func (h *GatePassHandler) caller(ctx *gin.Context) (user.Identity, bool) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
	}
	return id, ok
}

func (h *GatePassHandler) Generate(ctx *gin.Context) {
	id, ok := h.caller(ctx)
	if !ok {
		return
	}

	var req GeneratePassRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(ctx, "Missing required fields", parseBindError(err, &req))
		return
	}

	minutes, err := gatepass.ParseMinutes(req.Expiration)
	if err != nil || minutes <= 0 || minutes > gatepass.MaxExpirationMinutes {
		RespondBadRequest(ctx, "Invalid expiration value", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	pass, err := h.registry.GenerateEntry(cctx, id, service.EntryRequest{
		VisitorName:       req.VisitorName,
		VisitorPhone:      req.VisitorPhone,
		ExpirationMinutes: minutes,
	})
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not generate gate pass")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"token_id":   pass.TokenID,
		"expires_in": pass.ExpiresIn,
		"expires_at": pass.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *GatePassHandler) Validate(ctx *gin.Context) {
	id, ok := h.caller(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	details, err := h.registry.Validate(cctx, id, ctx.Param("token_id"))
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not validate gate pass")
		return
	}

	ctx.JSON(http.StatusOK, validateResponse{
		VisitorName:  details.VisitorName,
		VisitorPhone: details.VisitorPhone,
		ExpiresAt:    details.ExpiresAt.Format(time.RFC3339),
		Purpose:      string(details.Purpose),
	})
}

func (h *GatePassHandler) GenerateExit(ctx *gin.Context) {
	id, ok := h.caller(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	pass, err := h.registry.GenerateExit(cctx, id, ctx.Param("token_id"))
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not generate exit gate pass")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"exit_token_id": pass.TokenID,
		"expires_in":    pass.ExpiresIn,
		"expires_at":    pass.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *GatePassHandler) Active(ctx *gin.Context) {
	id, ok := h.caller(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	passes, err := h.registry.Active(cctx, id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not list gate passes")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": passes, "count": len(passes)})
}
