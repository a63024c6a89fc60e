package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/config"
	"github.com/petdor/identity/internal/domain/user"
	"github.com/petdor/identity/internal/observability"
)

// Consumer-side interfaces so handler tests can fake the services.

type AccountService interface {
	Register(ctx context.Context, name, email, password, confirmPassword, role string) (user.User, error)
	Authenticate(ctx context.Context, email, password string) (user.User, error)
	Deactivate(ctx context.Context, userID, confirmPassword, reason string) error
	Reactivate(ctx context.Context, userID string) error
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	UpdateProfile(ctx context.Context, userID string, name, email *string) error
	ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error
}

type ResetService interface {
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, newPassword, confirmPassword string) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string, isAdmin bool) (string, error)
}

type AuthHandler struct {
	accounts AccountService
	resets   ResetService
	jwt      TokenIssuer
	prom     *observability.Prom
}

func NewAuthHandler(accountsSvc AccountService, resetsSvc ResetService, jwt TokenIssuer, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		accounts: accountsSvc,
		resets:   resetsSvc,
		jwt:      jwt,
		prom:     prom,
	}
}

type SignUpRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Role            string `json:"role" binding:"omitempty,oneof=tutor veterinario clinica"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt plus an insert; give it room
	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	u, err := h.accounts.Register(cctx, req.Name, req.Email, req.Password, req.ConfirmPassword, req.Role)

	if err != nil {
		var ve *accounts.ValidationError

		switch {
		case errors.As(err, &ve):
			RespondBadRequest(ctx, "Invalid signup data", gin.H{"field": ve.Field, "reason": ve.Reason})
		case errors.Is(err, accounts.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	h.prom.SignupsTotal.Inc()

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role, u.IsAdmin)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"user":        u,
		"accessToken": accessToken,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, err := h.accounts.Authenticate(cctx, req.Email, req.Password)

	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.prom.LoginsTotal.WithLabelValues("rejected").Inc()
			// one message for unknown email, wrong password and disabled
			// account alike
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		h.prom.LoginsTotal.WithLabelValues("error").Inc()
		RespondInternal(ctx, "Could not log in")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role, u.IsAdmin)

	if err != nil {
		h.prom.LoginsTotal.WithLabelValues("error").Inc()
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.prom.LoginsTotal.WithLabelValues("ok").Inc()

	ctx.JSON(http.StatusOK, gin.H{
		"user":        u,
		"accessToken": accessToken,
	})
}
