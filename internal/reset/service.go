// Package reset implements the password reset token workflow: issuance with a
// trailing-window rate limit, and one-time, atomic consumption.
package reset

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/clock"
	"github.com/petdor/identity/internal/domain/user"
	"github.com/petdor/identity/internal/notifications"
	"github.com/petdor/identity/internal/repo/postgres"
	"github.com/petdor/identity/internal/security"
)

var (
	// ErrRateLimited is internal only: the HTTP layer renders the same
	// generic message as a successful request, otherwise the limiter itself
	// would leak which emails are registered.
	ErrRateLimited = errors.New("too many reset requests")

	ErrTokenInvalid = errors.New("reset token invalid")
	ErrTokenExpired = errors.New("reset token expired")
	ErrTokenUsed    = errors.New("reset token already used")
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdatePassword(ctx context.Context, id string, newHash string) error
}

type TokenStore interface {
	Create(ctx context.Context, row postgres.ResetTokenRow) error
	CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error)
	Consume(ctx context.Context, token string, now time.Time) (userID string, ok bool, err error)
	GetByToken(ctx context.Context, token string) (postgres.ResetTokenRow, error)
}

const rateLimitWindow = 24 * time.Hour

// same dummy hash trick as the login path
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type Service struct {
	users    UserStore
	tokens   TokenStore
	clock    clock.Clock
	notifier notifications.Notifier
	log      *slog.Logger

	tokenTTL          time.Duration
	maxPerDay         int
	passwordMinLength int
}

func NewService(users UserStore, tokens TokenStore, clk clock.Clock, notifier notifications.Notifier, log *slog.Logger, tokenTTL time.Duration, maxPerDay, passwordMinLength int) *Service {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if maxPerDay <= 0 {
		maxPerDay = 3
	}
	if passwordMinLength <= 0 {
		passwordMinLength = 8
	}

	return &Service{
		users:             users,
		tokens:            tokens,
		clock:             clk,
		notifier:          notifier,
		log:               log,
		tokenTTL:          tokenTTL,
		maxPerDay:         maxPerDay,
		passwordMinLength: passwordMinLength,
	}
}

// RequestReset issues a reset token for the address, if it belongs to an
// account and the account is under the daily issuance cap. A nil return does
// NOT mean a mail went out; it means the caller may show "check your email".
// Only ErrRateLimited and storage failures come back, and the HTTP layer
// hides the former.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	if err := accounts.ValidateEmail(email); err != nil {
		return err
	}

	now := s.clock.Now()

	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			// burn comparable work so the miss path is not visibly faster
			security.CheckPassword(dummyHash, email)

			s.log.Info("reset requested for unknown email")
			return nil
		}

		return err
	}

	count, err := s.tokens.CountSince(ctx, u.ID, now.Add(-rateLimitWindow))

	if err != nil {
		return err
	}

	if count >= s.maxPerDay {
		s.log.Info("reset rate limited", "user_id", u.ID, "count", count)
		return ErrRateLimited
	}

	token, err := security.GenerateResetToken()

	if err != nil {
		return err
	}

	row := postgres.ResetTokenRow{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: now.Add(s.tokenTTL),
		Used:      false,
		CreatedAt: now,
	}

	if err := s.tokens.Create(ctx, row); err != nil {
		return err
	}

	s.log.Info("reset token issued", "user_id", u.ID, "expires_at", row.ExpiresAt)

	// best effort: a failed send never changes the outward result
	sendErr := s.notifier.SendPasswordReset(ctx, notifications.SendPasswordResetInput{
		Email:     u.Email,
		Name:      u.Name,
		Token:     token,
		ExpiresIn: s.tokenTTL,
	})

	if sendErr != nil {
		s.log.Warn("reset email failed", "user_id", u.ID, "err", sendErr)
	}

	return nil
}

// ConfirmReset redeems a token and sets the new password. The password is
// checked BEFORE any mutation so a typo never spends a valid token; after the
// atomic consume there is no way back — if the subsequent password update
// fails, the token stays spent rather than become replayable.
func (s *Service) ConfirmReset(ctx context.Context, token, newPassword, confirmPassword string) error {
	if token == "" {
		return ErrTokenInvalid
	}

	if err := accounts.ValidatePassword(newPassword, s.passwordMinLength); err != nil {
		return err
	}

	if err := accounts.PasswordsMatch(newPassword, confirmPassword); err != nil {
		return err
	}

	now := s.clock.Now()

	userID, consumed, err := s.tokens.Consume(ctx, token, now)

	if err != nil {
		return err
	}

	if !consumed {
		return s.classifyConsumeMiss(ctx, token, now)
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		// token is already spent; surfacing the error is all we do
		return err
	}

	s.log.Info("password reset completed", "user_id", userID)

	if u, err := s.users.GetByID(ctx, userID); err == nil {
		sendErr := s.notifier.SendPasswordChanged(ctx, notifications.SendPasswordChangedInput{Email: u.Email, Name: u.Name})
		if sendErr != nil {
			s.log.Warn("reset confirmation email failed", "user_id", userID, "err", sendErr)
		}
	}

	return nil
}

// classifyConsumeMiss is read-only and exists purely for error messaging; the
// conditional UPDATE already decided that nothing was redeemed.
func (s *Service) classifyConsumeMiss(ctx context.Context, token string, now time.Time) error {
	row, err := s.tokens.GetByToken(ctx, token)

	if err != nil {
		if errors.Is(err, postgres.ErrResetTokenNotFound) {
			return ErrTokenInvalid
		}

		return err
	}

	if row.Used {
		return ErrTokenUsed
	}

	if !row.ExpiresAt.After(now) {
		return ErrTokenExpired
	}

	// consume lost a race it should have won; treat as spent
	return ErrTokenUsed
}
