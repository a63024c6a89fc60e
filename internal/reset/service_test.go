package reset_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/clock"
	"github.com/petdor/identity/internal/domain/user"
	"github.com/petdor/identity/internal/notifications"
	"github.com/petdor/identity/internal/repo/postgres"
	"github.com/petdor/identity/internal/reset"
	"github.com/petdor/identity/internal/security"
)

// In-memory stores with the same semantics as the Postgres repos, so the whole
// token lifecycle can run against a fake clock.

type memUserStore struct {
	mu    sync.Mutex
	users map[string]user.User // keyed by id
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]user.User)}
}

func (m *memUserStore) add(u user.User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *memUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, postgres.ErrUserNotFound
}

func (m *memUserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return user.User{}, postgres.ErrUserNotFound
	}
	return u, nil
}

func (m *memUserStore) UpdatePassword(ctx context.Context, id string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return postgres.ErrUserNotFound
	}

	u.PasswordHash = newHash
	m.users[id] = u
	return nil
}

type memTokenStore struct {
	mu   sync.Mutex
	rows []postgres.ResetTokenRow

	createErr error
	countErr  error
}

func (m *memTokenStore) Create(ctx context.Context, row postgres.ResetTokenRow) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	m.rows = append(m.rows, row)
	m.mu.Unlock()
	return nil
}

func (m *memTokenStore) CountSince(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, r := range m.rows {
		if r.UserID == userID && r.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// Consume mirrors the conditional UPDATE: flips used only when the token
// exists, is unused and unexpired, all in one step.
func (m *memTokenStore) Consume(ctx context.Context, token string, now time.Time) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rows {
		if r.Token == token && !r.Used && r.ExpiresAt.After(now) {
			m.rows[i].Used = true
			return r.UserID, true, nil
		}
	}
	return "", false, nil
}

func (m *memTokenStore) GetByToken(ctx context.Context, token string) (postgres.ResetTokenRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if r.Token == token {
			return r, nil
		}
	}
	return postgres.ResetTokenRow{}, postgres.ErrResetTokenNotFound
}

type captureNotifier struct {
	mu         sync.Mutex
	lastToken  string
	resetSends int
	failWith   error
}

func (n *captureNotifier) SendPasswordReset(ctx context.Context, in notifications.SendPasswordResetInput) error {
	n.mu.Lock()
	n.lastToken = in.Token
	n.resetSends++
	n.mu.Unlock()
	return n.failWith
}

func (n *captureNotifier) SendWelcome(ctx context.Context, in notifications.SendWelcomeInput) error {
	return n.failWith
}

func (n *captureNotifier) SendPasswordChanged(ctx context.Context, in notifications.SendPasswordChangedInput) error {
	return n.failWith
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	users    *memUserStore
	tokens   *memTokenStore
	clk      *clock.Fake
	notifier *captureNotifier
	svc      *reset.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newMemUserStore()
	tokens := &memTokenStore{}
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	notifier := &captureNotifier{}

	svc := reset.NewService(users, tokens, clk, notifier, discardLogger(), time.Hour, 3, 8)

	hash, err := security.HashPassword("oldpassword")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	users.add(user.User{
		ID:           "u1",
		Name:         "Maria Silva",
		Email:        "maria@example.com",
		PasswordHash: hash,
		Role:         user.RoleTutor,
		Active:       true,
	})

	return &fixture{users: users, tokens: tokens, clk: clk, notifier: notifier, svc: svc}
}

func TestResetLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// request a token
	if err := f.svc.RequestReset(ctx, "maria@example.com"); err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	token := f.notifier.lastToken
	if token == "" {
		t.Fatal("no token delivered to the notifier")
	}

	// redeem it
	if err := f.svc.ConfirmReset(ctx, token, "brandnewpass", "brandnewpass"); err != nil {
		t.Fatalf("ConfirmReset failed: %v", err)
	}

	u, err := f.users.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if security.CheckPassword(u.PasswordHash, "oldpassword") {
		t.Fatal("old password still verifies after reset")
	}

	if !security.CheckPassword(u.PasswordHash, "brandnewpass") {
		t.Fatal("new password does not verify after reset")
	}

	// replaying the same token must fail as used
	err = f.svc.ConfirmReset(ctx, token, "anotherpass1", "anotherpass1")

	if !errors.Is(err, reset.ErrTokenUsed) {
		t.Fatalf("got %v, want ErrTokenUsed on replay", err)
	}

	if !security.CheckPassword(u.PasswordHash, "brandnewpass") {
		t.Fatal("replay must not change the password again")
	}
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestReset(context.Background(), "nobody@example.com")

	if err != nil {
		t.Fatalf("unknown email must look like success, got %v", err)
	}

	if f.notifier.resetSends != 0 {
		t.Fatalf("no mail should go out for unknown email, got %d sends", f.notifier.resetSends)
	}

	if len(f.tokens.rows) != 0 {
		t.Fatalf("no token should be issued for unknown email, got %d", len(f.tokens.rows))
	}
}

func TestRequestResetInvalidEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestReset(context.Background(), "definitely not an email")

	if !accounts.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestRequestResetRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.svc.RequestReset(ctx, "maria@example.com"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		f.clk.Advance(time.Minute)
	}

	// fourth inside the window is refused
	err := f.svc.RequestReset(ctx, "maria@example.com")

	if !errors.Is(err, reset.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}

	// once the oldest issuance falls out of the 24h window, issuing works again
	f.clk.Advance(24 * time.Hour)

	if err := f.svc.RequestReset(ctx, "maria@example.com"); err != nil {
		t.Fatalf("request after window roll-off failed: %v", err)
	}
}

func TestRequestResetSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.failWith = errors.New("smtp down")

	err := f.svc.RequestReset(context.Background(), "maria@example.com")

	if err != nil {
		t.Fatalf("a failed send must not surface, got %v", err)
	}

	// token was still persisted; the user can retry via a resent link
	if len(f.tokens.rows) != 1 {
		t.Fatalf("expected the token row to exist, got %d rows", len(f.tokens.rows))
	}
}

func TestConfirmResetExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestReset(ctx, "maria@example.com"); err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	token := f.notifier.lastToken

	// TTL is one hour; jump past it
	f.clk.Advance(61 * time.Minute)

	err := f.svc.ConfirmReset(ctx, token, "brandnewpass", "brandnewpass")

	if !errors.Is(err, reset.ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}

	u, _ := f.users.GetByID(ctx, "u1")
	if !security.CheckPassword(u.PasswordHash, "oldpassword") {
		t.Fatal("expired confirm must not change the password")
	}
}

func TestConfirmResetUnknownToken(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ConfirmReset(context.Background(), "made-up-token", "brandnewpass", "brandnewpass")

	if !errors.Is(err, reset.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestConfirmResetEmptyToken(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ConfirmReset(context.Background(), "", "brandnewpass", "brandnewpass")

	if !errors.Is(err, reset.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestConfirmResetBadPasswordDoesNotSpendToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestReset(ctx, "maria@example.com"); err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	token := f.notifier.lastToken

	// too short: validation fires before the token is consumed
	err := f.svc.ConfirmReset(ctx, token, "short", "short")

	if !accounts.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}

	// mismatched confirmation, same story
	err = f.svc.ConfirmReset(ctx, token, "brandnewpass", "different123")

	if !accounts.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}

	// the token is still good
	if err := f.svc.ConfirmReset(ctx, token, "brandnewpass", "brandnewpass"); err != nil {
		t.Fatalf("token should still be redeemable, got %v", err)
	}
}

func TestConfirmResetConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestReset(ctx, "maria@example.com"); err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	token := f.notifier.lastToken

	const racers = 8

	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.ConfirmReset(ctx, token, "brandnewpass", "brandnewpass")
		}()
	}

	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, reset.ErrTokenUsed) {
			t.Fatalf("loser got %v, want ErrTokenUsed", err)
		}
	}

	if wins != 1 {
		t.Fatalf("exactly one confirm should win, got %d", wins)
	}
}
