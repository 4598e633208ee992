package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mug56-sys/dashboard/internal/auth"
	"github.com/Mug56-sys/dashboard/internal/data"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeDirectory implements UserDirectory in memory.
type fakeDirectory struct {
	users map[string]*data.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]*data.User{}}
}

func (f *fakeDirectory) CreateUser(_ context.Context, email, hashedPassword string) (*data.User, error) {
	if _, ok := f.users[email]; ok {
		return nil, errors.New("user already exists")
	}
	u := &data.User{ID: bson.NewObjectID(), Email: email, Password: hashedPassword}
	f.users[email] = u
	return u, nil
}

func (f *fakeDirectory) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, data.ErrNotFound
	}
	return u, nil
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client)
	tokens := auth.NewJWTManager("test-secret", time.Hour)
	return NewProvider(newFakeDirectory(), tokens, store)
}

func TestRegisterLoginCurrent(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	id, token, err := p.Register(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if id.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	got, err := p.Current(ctx, token)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if got != id {
		t.Fatalf("Current = %+v, want %+v", got, id)
	}

	// Fresh login opens a second, independent session.
	id2, token2, err := p.Login(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if id2.ID != id.ID {
		t.Fatalf("login resolved a different user: %+v vs %+v", id2, id)
	}
	if _, err := p.Current(ctx, token2); err != nil {
		t.Fatalf("Current after login failed: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, _, err := p.Register(ctx, "alice@example.com", "hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, _, err := p.Login(ctx, "alice@example.com", "wrong"); err == nil {
		t.Fatalf("expected login failure with wrong password")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, token, err := p.Register(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := p.Logout(ctx, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	// Token still carries a valid signature, but the session is gone.
	if _, err := p.Current(ctx, token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after logout, got %v", err)
	}
}

func TestSessionChangeEvents(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	events, cancel := p.Subscribe()
	defer cancel()

	id, token, err := p.Register(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ev := <-events
	if !ev.LoggedIn || ev.Identity != id {
		t.Fatalf("unexpected login event: %+v", ev)
	}

	if err := p.Logout(ctx, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	ev = <-events
	if ev.LoggedIn || ev.Identity != id {
		t.Fatalf("unexpected logout event: %+v", ev)
	}

	// After cancel, further events are dropped and the channel closes.
	cancel()
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}
