package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin gates the account administration endpoints. Admin is a flag,
// not a role: a clinic account can carry it too.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, ok := UserIDFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		if !IsAdminFromContext(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Admin rights required",
				},
			})
			return
		}
		c.Next()
	}
}
