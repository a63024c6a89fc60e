package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/config"
	"github.com/petdor/identity/internal/http/middlewares"
)

type UpdateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type DeactivateRequest struct {
	Password string `json:"password" binding:"required"`
	Reason   string `json:"reason" binding:"omitempty,max=500"`
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.accounts.GetUser(cctx, userID)

	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			RespondNotFound(ctx, "Account no longer exists")
			return
		}

		RespondInternal(ctx, "Could not load account")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.accounts.UpdateProfile(cctx, userID, req.Name, req.Email)

	if err != nil {
		var ve *accounts.ValidationError

		switch {
		case errors.As(err, &ve):
			RespondBadRequest(ctx, "Invalid profile data", gin.H{"field": ve.Field, "reason": ve.Reason})
		case errors.Is(err, accounts.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, accounts.ErrUserNotFound):
			RespondNotFound(ctx, "Account no longer exists")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Profile updated."})
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.accounts.ChangePassword(cctx, userID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)

	if err != nil {
		var ve *accounts.ValidationError

		switch {
		case errors.As(err, &ve):
			RespondBadRequest(ctx, "Invalid password", gin.H{"field": ve.Field, "reason": ve.Reason})
		case errors.Is(err, accounts.ErrWrongPassword):
			RespondBadRequest(ctx, "Current password is incorrect.", gin.H{"code": "wrong_password"})
		case errors.Is(err, accounts.ErrUserNotFound):
			RespondNotFound(ctx, "Account no longer exists")
		default:
			RespondInternal(ctx, "Could not change password")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password changed."})
}

// DeactivateAccount is the owner-facing soft delete; the password is required
// again even on an authenticated session.
func (h *AuthHandler) DeactivateAccount(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req DeactivateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.accounts.Deactivate(cctx, userID, req.Password, req.Reason)

	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrWrongPassword):
			RespondBadRequest(ctx, "Password is incorrect.", gin.H{"code": "wrong_password"})
		case errors.Is(err, accounts.ErrUserNotFound):
			RespondNotFound(ctx, "Account no longer exists")
		default:
			RespondInternal(ctx, "Could not deactivate account")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Account deactivated."})
}
