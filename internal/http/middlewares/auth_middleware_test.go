package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/auth"
	"github.com/petdor/identity/internal/http/middlewares"
)

func protectedRouter(mw *middlewares.AuthMiddleware, adminOnly bool) *gin.Engine {
	r := gin.New()

	chain := []gin.HandlerFunc{mw.RequireAuth()}
	if adminOnly {
		chain = append(chain, mw.RequireAdmin())
	}
	chain = append(chain, func(c *gin.Context) {
		id, _ := middlewares.UserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"userId": id})
	})

	r.GET("/protected", chain...)
	return r
}

func TestRequireAuth(t *testing.T) {
	jwt := auth.NewManager("test-secret", 15*time.Minute)
	mw := middlewares.NewAuthMiddleware(jwt)
	r := protectedRouter(mw, false)

	t.Run("valid_token", func(t *testing.T) {
		token, err := jwt.GenerateAccessToken("u1", "maria@example.com", "tutor", false)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got %d, want 200, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("missing_header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", w.Code)
		}
	})

	t.Run("garbage_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", w.Code)
		}
	})

	t.Run("wrong_signing_key", func(t *testing.T) {
		other := auth.NewManager("different-secret", 15*time.Minute)
		token, err := other.GenerateAccessToken("u1", "maria@example.com", "tutor", false)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", w.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	jwt := auth.NewManager("test-secret", 15*time.Minute)
	mw := middlewares.NewAuthMiddleware(jwt)
	r := protectedRouter(mw, true)

	t.Run("admin_allowed", func(t *testing.T) {
		token, err := jwt.GenerateAccessToken("admin1", "admin@example.com", "clinica", true)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got %d, want 200, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("regular_user_forbidden", func(t *testing.T) {
		token, err := jwt.GenerateAccessToken("u1", "maria@example.com", "tutor", false)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("got %d, want 403, body=%s", w.Code, w.Body.String())
		}
	})
}
