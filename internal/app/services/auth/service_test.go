package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainauth "github.com/Bonshal/swapspot/internal/domain/auth"
	domainuser "github.com/Bonshal/swapspot/internal/domain/user"
	"github.com/Bonshal/swapspot/internal/infra/storage/memory"
)

// plainHasher avoids bcrypt cost in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hash:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "hash:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type seqTokens struct {
	mu sync.Mutex
	n  int
}

func (g *seqTokens) NewToken() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return string(rune('a'+g.n-1)) + "-token", nil
}

type recordingHook struct {
	mu      sync.Mutex
	started []string
	ended   []string
}

func (h *recordingHook) SessionStarted(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, userID)
}

func (h *recordingHook) SessionEnded(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = append(h.ended, userID)
}

func newService(hook SessionHook) *Service {
	return &Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  plainHasher{},
		Tokens:     &seqTokens{},
		Hook:       hook,
		SessionTTL: time.Hour,
	}
}

func register(t *testing.T, service *Service) *AuthResult {
	t.Helper()
	result, err := service.Register(context.Background(), RegisterParams{
		Email:    "user@example.com",
		Name:     "Test User",
		Password: "long-enough",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return result
}

func TestRegisterIssuesSession(t *testing.T) {
	hook := &recordingHook{}
	service := newService(hook)

	result := register(t, service)
	if result.Token == "" {
		t.Fatal("no token issued")
	}
	if result.User.Email != "user@example.com" {
		t.Fatalf("email = %q", result.User.Email)
	}

	resolved, err := service.ResolveToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.User.ID != result.User.ID {
		t.Fatal("token resolves to a different user")
	}
	if len(hook.started) != 1 || hook.started[0] != string(result.User.ID) {
		t.Fatalf("sign-in hook calls = %v", hook.started)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	service := newService(nil)
	_, err := service.Register(context.Background(), RegisterParams{
		Email:    "user@example.com",
		Name:     "Test User",
		Password: "short",
	})
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service := newService(nil)
	register(t, service)
	_, err := service.Register(context.Background(), RegisterParams{
		Email:    "USER@example.com",
		Name:     "Other",
		Password: "long-enough",
	})
	if !errors.Is(err, domainuser.ErrEmailAlreadyUsed) {
		t.Fatalf("err = %v, want ErrEmailAlreadyUsed", err)
	}
}

func TestLoginChecksCredentials(t *testing.T) {
	service := newService(nil)
	register(t, service)

	if _, err := service.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := service.Login(context.Background(), LoginParams{Email: "nobody@example.com", Password: "long-enough"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials for unknown email", err)
	}
	result, err := service.Login(context.Background(), LoginParams{Email: " User@Example.com ", Password: "long-enough"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("no token issued")
	}
}

func TestLoginRejectsBlockedUser(t *testing.T) {
	service := newService(nil)
	result := register(t, service)

	user, err := service.Users.ByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	user.Blocked = true
	if err := service.Users.Save(context.Background(), user); err != nil {
		t.Fatalf("save user: %v", err)
	}

	if _, err := service.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "long-enough"}); !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("err = %v, want ErrUserBlocked", err)
	}
	// Existing sessions stop resolving too.
	if _, err := service.ResolveToken(context.Background(), result.Token); !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("resolve err = %v, want ErrUserBlocked", err)
	}
}

func TestLogoutEndsSessionAndFiresHook(t *testing.T) {
	hook := &recordingHook{}
	service := newService(hook)
	result := register(t, service)

	if err := service.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := service.ResolveToken(context.Background(), result.Token); !errors.Is(err, domainauth.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if len(hook.ended) != 1 {
		t.Fatalf("sign-out hook calls = %v", hook.ended)
	}

	// Logging out an unknown or empty token is a quiet no-op.
	if err := service.Logout(context.Background(), "no-such-token"); err != nil {
		t.Fatalf("unknown token logout: %v", err)
	}
	if err := service.Logout(context.Background(), "  "); err != nil {
		t.Fatalf("blank token logout: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	service := newService(nil)
	result := register(t, service)

	name := "Renamed User"
	location := "Brno"
	updated, err := service.UpdateProfile(context.Background(), string(result.User.ID), domainuser.ProfileUpdate{
		Name:     &name,
		Location: &location,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Renamed User" || updated.Location != "Brno" {
		t.Fatalf("profile = %+v", updated)
	}

	blank := "   "
	if _, err := service.UpdateProfile(context.Background(), string(result.User.ID), domainuser.ProfileUpdate{Name: &blank}); !errors.Is(err, domainuser.ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	service := newService(nil)
	result := register(t, service)

	if err := service.ChangePassword(context.Background(), string(result.User.ID), "wrong", "another-long-one"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if err := service.ChangePassword(context.Background(), string(result.User.ID), "long-enough", "tiny"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
	if err := service.ChangePassword(context.Background(), string(result.User.ID), "long-enough", "another-long-one"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	// The old session is gone and only the new password works.
	if _, err := service.ResolveToken(context.Background(), result.Token); !errors.Is(err, domainauth.ErrSessionNotFound) {
		t.Fatalf("resolve err = %v, want session revoked", err)
	}
	if _, err := service.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "long-enough"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("old password still accepted")
	}
	if _, err := service.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "another-long-one"}); err != nil {
		t.Fatalf("new password login: %v", err)
	}
}
