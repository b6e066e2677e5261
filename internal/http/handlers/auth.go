package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/estategate/internal/config"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/http/middlewares"
	"github.com/geocoder89/estategate/internal/service"
	"github.com/gin-gonic/gin"
)

// AccountService is the credential store as seen by the HTTP layer.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (string, user.PendingRegistration, error)
	Verify(ctx context.Context, claim, password string) (service.Credentials, error)
	Login(ctx context.Context, email, password string) (service.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Me(ctx context.Context, caller user.Identity) (user.User, error)
}

type AuthHandler struct {
	accounts AccountService
	log      *slog.Logger
}

func NewAuthHandler(accounts AccountService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log}
}

type RegisterRequest struct {
	FullName string `json:"fullname" binding:"required,max=200"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required,max=32"`
	Status   string `json:"status" binding:"omitempty,oneof=Visitor Resident Admin Security"`
}

type VerifyRequest struct {
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type credentialsResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// mail delivery sits behind this timeout
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	_, _, err := h.accounts.Register(cctx, service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     req.Status,
	})
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not register user")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Verification email sent."})
}

// Verify redeems the emailed claim. Every failure here is a 400.
func (h *AuthHandler) Verify(ctx *gin.Context) {
	var req VerifyRequest

	// an empty body is a missing password, reported after the claim checks
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, &req))
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	creds, err := h.accounts.Verify(cctx, ctx.Param("token"), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimExpired):
			RespondError(ctx, http.StatusBadRequest, "token_expired", "Token expired.", nil)
		case errors.Is(err, service.ErrClaimInvalid):
			RespondError(ctx, http.StatusBadRequest, "invalid_token", "Invalid token.", nil)
		case errors.Is(err, service.ErrConflict):
			RespondError(ctx, http.StatusBadRequest, "email_taken", "Email already registered.", nil)
		case errors.Is(err, service.ErrValidation):
			RespondError(ctx, http.StatusBadRequest, "password_required", "Password is required for verification.", nil)
		default:
			respondServiceError(ctx, h.log, err, "Could not verify registration")
		}
		return
	}

	ctx.JSON(http.StatusOK, credentialsResponse{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	creds, err := h.accounts.Login(cctx, req.Email, req.Password)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, credentialsResponse{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	access, err := h.accounts.Refresh(cctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrAuth) {
			RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
			return
		}
		respondServiceError(ctx, h.log, err, "Could not refresh session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"access_token": access})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	u, err := h.accounts.Me(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, u)
}
