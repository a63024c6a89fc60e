package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/petdor/identity/internal/clock"
	"github.com/petdor/identity/internal/domain/user"
	"github.com/petdor/identity/internal/notifications"
	"github.com/petdor/identity/internal/repo/postgres"
	"github.com/petdor/identity/internal/security"
)

// Keep this interface at the consumer so tests can fake the store easily.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, name, email *string) error
	UpdatePassword(ctx context.Context, id string, newHash string) error
	SetActive(ctx context.Context, id string, active bool, reason *string, at time.Time) error
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}

// Burned on lookups that miss, so an unknown email costs the same bcrypt work
// as a wrong password on a known one.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type Service struct {
	users    UserStore
	clock    clock.Clock
	notifier notifications.Notifier
	log      *slog.Logger

	passwordMinLength int
}

func NewService(users UserStore, clk clock.Clock, notifier notifications.Notifier, log *slog.Logger, passwordMinLength int) *Service {
	if passwordMinLength <= 0 {
		passwordMinLength = 8
	}

	return &Service{
		users:             users,
		clock:             clk,
		notifier:          notifier,
		log:               log,
		passwordMinLength: passwordMinLength,
	}
}

// Register validates input, hashes the password and creates the account.
// The welcome mail is fire-and-forget: a dead provider must not block signup.
func (s *Service) Register(ctx context.Context, name, email, password, confirmPassword, role string) (user.User, error) {
	if err := ValidateName(name); err != nil {
		return user.User{}, err
	}

	if err := ValidateEmail(email); err != nil {
		return user.User{}, err
	}

	if err := ValidatePassword(password, s.passwordMinLength); err != nil {
		return user.User{}, err
	}

	if err := PasswordsMatch(password, confirmPassword); err != nil {
		return user.User{}, err
	}

	if role == "" {
		role = user.RoleTutor
	}

	if !user.ValidRole(role) {
		return user.User{}, validationErr("role", "unknown account type")
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		return user.User{}, err
	}

	u, err := s.users.Create(ctx, strings.TrimSpace(name), email, hash, role)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			return user.User{}, ErrEmailTaken
		}

		return user.User{}, err
	}

	s.log.Info("user registered", "user_id", u.ID, "role", u.Role)

	if err := s.notifier.SendWelcome(ctx, notifications.SendWelcomeInput{Email: u.Email, Name: u.Name}); err != nil {
		s.log.Warn("welcome email failed", "user_id", u.ID, "err", err)
	}

	return u, nil
}

// Authenticate resolves email+password to an identity. Unknown email, wrong
// password and deactivated account are indistinguishable to the caller; the
// actual cause is only logged.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			// equalize work with the found path
			security.CheckPassword(dummyHash, password)

			s.log.Info("login rejected", "reason", "unknown_email")
			return user.User{}, ErrInvalidCredentials
		}

		return user.User{}, err
	}

	if !security.CheckPassword(u.PasswordHash, password) {
		s.log.Info("login rejected", "reason", "wrong_password", "user_id", u.ID)
		return user.User{}, ErrInvalidCredentials
	}

	if !u.Active {
		s.log.Info("login rejected", "reason", "account_disabled", "user_id", u.ID)
		return user.User{}, ErrInvalidCredentials
	}

	s.log.Info("login ok", "user_id", u.ID)

	return u, nil
}

// Deactivate soft-deletes the account after re-checking the password. This is
// a direct hash check, not Authenticate, so an already-disabled or otherwise
// gated account can still be closed by its owner.
func (s *Service) Deactivate(ctx context.Context, userID, confirmPassword, reason string) error {
	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	if !security.CheckPassword(u.PasswordHash, confirmPassword) {
		return ErrWrongPassword
	}

	if reason == "" {
		reason = "user request"
	}

	err = s.users.SetActive(ctx, userID, false, &reason, s.clock.Now())

	if err != nil {
		return err
	}

	s.log.Info("account deactivated", "user_id", userID)

	return nil
}

func (s *Service) Reactivate(ctx context.Context, userID string) error {
	err := s.users.SetActive(ctx, userID, true, nil, s.clock.Now())

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	s.log.Info("account reactivated", "user_id", userID)

	return nil
}

func (s *Service) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	err := s.users.SetAdmin(ctx, userID, isAdmin)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	s.log.Info("admin flag changed", "user_id", userID, "is_admin", isAdmin)

	return nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, name, email *string) error {
	if name != nil {
		if err := ValidateName(*name); err != nil {
			return err
		}
	}

	if email != nil {
		if err := ValidateEmail(*email); err != nil {
			return err
		}
	}

	err := s.users.UpdateProfile(ctx, userID, name, email)

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrUserNotFound):
			return ErrUserNotFound
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			return ErrEmailTaken
		}

		return err
	}

	return nil
}

// ChangePassword is the logged-in flow: current password required.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	if err := ValidatePassword(newPassword, s.passwordMinLength); err != nil {
		return err
	}

	if err := PasswordsMatch(newPassword, confirm); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	if !security.CheckPassword(u.PasswordHash, current) {
		return ErrWrongPassword
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.log.Info("password changed", "user_id", userID)

	if err := s.notifier.SendPasswordChanged(ctx, notifications.SendPasswordChangedInput{Email: u.Email, Name: u.Name}); err != nil {
		s.log.Warn("password changed email failed", "user_id", userID, "err", err)
	}

	return nil
}
