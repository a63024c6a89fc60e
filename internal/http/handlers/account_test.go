package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/domain/user"
)

// mounts the handler behind a stub that plants the authenticated user id,
// standing in for the real auth middleware
func setupAuthedRouter(method, path, userID string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, func(c *gin.Context) {
		c.Set("auth.userID", userID)
		c.Next()
	}, h)

	return r
}

func TestMeHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		acc := &fakeAccountService{
			getUserFn: func(ctx context.Context, userID string) (user.User, error) {
				return user.User{ID: userID, Name: "Maria Silva", Email: "maria@example.com", Role: user.RoleTutor, Active: true}, nil
			},
		}

		h := newHandler(acc, &fakeResetService{})
		r := setupAuthedRouter(http.MethodGet, "/me", "u1", h.Me)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("deleted_account", func(t *testing.T) {
		acc := &fakeAccountService{
			getUserFn: func(ctx context.Context, userID string) (user.User, error) {
				return user.User{}, accounts.ErrUserNotFound
			},
		}

		h := newHandler(acc, &fakeResetService{})
		r := setupAuthedRouter(http.MethodGet, "/me", "ghost", h.Me)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, want 404, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("missing_identity", func(t *testing.T) {
		h := newHandler(&fakeAccountService{}, &fakeResetService{})
		r := setupRouter(http.MethodGet, "/me", h.Me)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, want 401, body=%s", w.Code, w.Body.String())
		}
	})
}

func TestChangePasswordHandler(t *testing.T) {
	body := `{"currentPassword": "oldpassword", "newPassword": "brandnewpass", "confirmPassword": "brandnewpass"}`

	tests := []struct {
		name           string
		svcErr         error
		wantStatusCode int
	}{
		{name: "success", wantStatusCode: http.StatusOK},
		{name: "wrong_current", svcErr: accounts.ErrWrongPassword, wantStatusCode: http.StatusBadRequest},
		{name: "service_error", svcErr: errors.New("db down"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			acc := &fakeAccountService{}
			if tt.svcErr != nil {
				acc.changePasswordFn = func(ctx context.Context, userID, current, newPassword, confirm string) error {
					return tt.svcErr
				}
			}

			h := newHandler(acc, &fakeResetService{})
			r := setupAuthedRouter(http.MethodPost, "/auth/password", "u1", h.ChangePassword)

			w := postJSON(r, "/auth/password", body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeactivateAccountHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcErr         error
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"password": "str0ngpass", "reason": "moving away"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong_password",
			body:           `{"password": "wrongwrong"}`,
			svcErr:         accounts.ErrWrongPassword,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing_password",
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			acc := &fakeAccountService{}
			if tt.svcErr != nil {
				acc.deactivateFn = func(ctx context.Context, userID, confirmPassword, reason string) error {
					return tt.svcErr
				}
			}

			h := newHandler(acc, &fakeResetService{})
			r := setupAuthedRouter(http.MethodDelete, "/auth/account", "u1", h.DeactivateAccount)

			req := httptest.NewRequest(http.MethodDelete, "/auth/account", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestReactivateAccountHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHandler(&fakeAccountService{}, &fakeResetService{})
		r := setupAuthedRouter(http.MethodPost, "/admin/users/:id/reactivate", "admin1", h.ReactivateAccount)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/users/u1/reactivate", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("not_found", func(t *testing.T) {
		acc := &fakeAccountService{
			reactivateFn: func(ctx context.Context, userID string) error {
				return accounts.ErrUserNotFound
			},
		}

		h := newHandler(acc, &fakeResetService{})
		r := setupAuthedRouter(http.MethodPost, "/admin/users/:id/reactivate", "admin1", h.ReactivateAccount)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/users/ghost/reactivate", nil))

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, want 404, body=%s", w.Code, w.Body.String())
		}
	})
}
