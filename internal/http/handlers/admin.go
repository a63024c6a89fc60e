package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/config"
)

type SetAdminRequest struct {
	IsAdmin *bool `json:"isAdmin" binding:"required"`
}

// ReactivateAccount undoes a soft delete. Admin-gated in the router; the
// service itself does not care who asks.
func (h *AuthHandler) ReactivateAccount(ctx *gin.Context) {
	userID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.accounts.Reactivate(cctx, userID)

	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			RespondNotFound(ctx, "No such account")
			return
		}

		RespondInternal(ctx, "Could not reactivate account")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Account reactivated."})
}

func (h *AuthHandler) SetAdmin(ctx *gin.Context) {
	userID := ctx.Param("id")

	var req SetAdminRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.accounts.SetAdmin(cctx, userID, *req.IsAdmin)

	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			RespondNotFound(ctx, "No such account")
			return
		}

		RespondInternal(ctx, "Could not change admin flag")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Admin flag updated."})
}
