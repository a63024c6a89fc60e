package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/config"
	"github.com/petdor/identity/internal/reset"
)

// The one response for every reset request, whether the email exists, the
// account is rate limited, or a mail actually went out. Varying this is how
// account enumeration happens.
const resetRequestMessage = "If the email is registered, you will receive a reset link shortly."

type RequestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ConfirmResetRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h *AuthHandler) RequestPasswordReset(ctx *gin.Context) {
	var req RequestResetRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.resets.RequestReset(cctx, req.Email)

	if err != nil {
		var ve *accounts.ValidationError

		switch {
		case errors.Is(err, reset.ErrRateLimited):
			// still the generic message; only the metric and server log know
			h.prom.ResetRequestsTotal.WithLabelValues("rate_limited").Inc()
		case errors.As(err, &ve):
			h.prom.ResetRequestsTotal.WithLabelValues("validation").Inc()
			RespondBadRequest(ctx, "Invalid reset request", gin.H{"field": ve.Field, "reason": ve.Reason})
			return
		default:
			h.prom.ResetRequestsTotal.WithLabelValues("error").Inc()
			RespondInternal(ctx, "Could not process request")
			return
		}
	} else {
		h.prom.ResetRequestsTotal.WithLabelValues("accepted").Inc()
	}

	ctx.JSON(http.StatusOK, gin.H{"message": resetRequestMessage})
}

func (h *AuthHandler) ConfirmPasswordReset(ctx *gin.Context) {
	var req ConfirmResetRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.resets.ConfirmReset(cctx, req.Token, req.NewPassword, req.ConfirmPassword)

	if err != nil {
		var ve *accounts.ValidationError

		switch {
		case errors.As(err, &ve):
			h.prom.ResetConfirmsTotal.WithLabelValues("validation").Inc()
			RespondBadRequest(ctx, "Invalid password", gin.H{"field": ve.Field, "reason": ve.Reason})
		case errors.Is(err, reset.ErrTokenInvalid):
			h.prom.ResetConfirmsTotal.WithLabelValues("invalid").Inc()
			RespondBadRequest(ctx, "Reset link is invalid.", gin.H{"code": "token_invalid"})
		case errors.Is(err, reset.ErrTokenExpired):
			h.prom.ResetConfirmsTotal.WithLabelValues("expired").Inc()
			RespondBadRequest(ctx, "Reset link has expired. Request a new one.", gin.H{"code": "token_expired"})
		case errors.Is(err, reset.ErrTokenUsed):
			h.prom.ResetConfirmsTotal.WithLabelValues("used").Inc()
			RespondBadRequest(ctx, "Reset link was already used.", gin.H{"code": "token_used"})
		default:
			h.prom.ResetConfirmsTotal.WithLabelValues("error").Inc()
			RespondInternal(ctx, "Could not reset password")
		}
		return
	}

	h.prom.ResetConfirmsTotal.WithLabelValues("ok").Inc()

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated. You can log in now."})
}
