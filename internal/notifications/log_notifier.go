package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier is the dev/test notifier: prints instead of sending. The reset
// token is NOT printed; only its length, so local logs never hold live tokens.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) SendPasswordReset(ctx context.Context, in SendPasswordResetInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.password_reset email=%s name=%s token_len=%d expires_in=%s",
		in.Email, in.Name, len(in.Token), in.ExpiresIn,
	)
	return nil
}

func (n *LogNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.welcome email=%s name=%s", in.Email, in.Name)
	return nil
}

func (n *LogNotifier) SendPasswordChanged(ctx context.Context, in SendPasswordChangedInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.password_changed email=%s name=%s", in.Email, in.Name)
	return nil
}

// Optional provider simulation for local testing of the breaker and the
// best-effort contract.
func simulateProvider(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}
