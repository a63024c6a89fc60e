package notifications

import (
	"context"
	"time"
)

type SendPasswordResetInput struct {
	Email     string
	Name      string
	Token     string
	ExpiresIn time.Duration
}

type SendWelcomeInput struct {
	Email string
	Name  string
}

type SendPasswordChangedInput struct {
	Email string
	Name  string
}

// Notifier delivers account mail. Every send is best effort from the caller's
// point of view: the reset flow logs failures but never surfaces them, so the
// response stays identical whether or not the address exists.
type Notifier interface {
	SendPasswordReset(ctx context.Context, input SendPasswordResetInput) error
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
	SendPasswordChanged(ctx context.Context, input SendPasswordChangedInput) error
}
