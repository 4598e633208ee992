package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mug56-sys/dashboard/internal/auth"
	"github.com/Mug56-sys/dashboard/internal/data"
)

// UserDirectory is the slice of the users store the provider needs.
type UserDirectory interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
}

// Event is a session-change notification: a login or a logout for one
// identity. Components subscribe so they can tear their live
// subscriptions down when the user behind them logs out.
type Event struct {
	Identity Identity
	LoggedIn bool
}

// Provider issues, resolves and revokes sessions. It is the in-process
// stand-in for the external identity provider: the rest of the core
// only ever sees Identity values coming out of Current.
type Provider struct {
	users  UserDirectory
	tokens *auth.JWTManager
	store  *RedisStore

	mu     sync.Mutex
	nextID int64
	subs   map[int64]chan Event
}

// NewProvider wires a provider over the user directory, token manager
// and session store.
func NewProvider(users UserDirectory, tokens *auth.JWTManager, store *RedisStore) *Provider {
	return &Provider{
		users:  users,
		tokens: tokens,
		store:  store,
		subs:   make(map[int64]chan Event),
	}
}

// Register creates a user and opens a session for them.
func (p *Provider) Register(ctx context.Context, email, password string) (Identity, string, error) {
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return Identity{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := p.users.CreateUser(ctx, email, hashed)
	if err != nil {
		return Identity{}, "", err
	}
	return p.open(ctx, user)
}

// Login verifies credentials and opens a session.
func (p *Provider) Login(ctx context.Context, email, password string) (Identity, string, error) {
	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		return Identity{}, "", err
	}
	if err := auth.CheckPassword(user.Password, password); err != nil {
		return Identity{}, "", fmt.Errorf("invalid credentials")
	}
	return p.open(ctx, user)
}

func (p *Provider) open(ctx context.Context, user *data.User) (Identity, string, error) {
	token, expiresAt, err := p.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return Identity{}, "", fmt.Errorf("generate token: %w", err)
	}

	id := Identity{ID: user.ID.Hex(), Email: user.Email}
	if err := p.store.Save(ctx, TokenHash(token), id, expiresAt); err != nil {
		return Identity{}, "", err
	}

	p.broadcast(Event{Identity: id, LoggedIn: true})
	return id, token, nil
}

// Current resolves a session token to the identity behind it. The
// token signature is checked first, then the session must still be
// live in the store (logout revokes it before the JWT expires).
func (p *Provider) Current(ctx context.Context, token string) (Identity, error) {
	claims, err := p.tokens.VerifyToken(token)
	if err != nil {
		return Identity{}, ErrNoSession
	}

	id, err := p.store.Lookup(ctx, TokenHash(token))
	if err != nil {
		return Identity{}, err
	}
	// The store is authoritative for liveness, the claims for identity;
	// they must agree.
	if id.ID != claims.UserID {
		return Identity{}, ErrNoSession
	}
	return id, nil
}

// Logout revokes the session and notifies subscribers.
func (p *Provider) Logout(ctx context.Context, token string) error {
	id, err := p.Current(ctx, token)
	if err != nil {
		return err
	}
	if err := p.store.Revoke(ctx, TokenHash(token)); err != nil {
		return err
	}
	p.broadcast(Event{Identity: id, LoggedIn: false})
	return nil
}

// Subscribe returns a channel of session-change events and a disposer.
// The channel is buffered; a subscriber that falls behind loses events
// rather than blocking logins.
func (p *Provider) Subscribe() (<-chan Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	ch := make(chan Event, 16)
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (p *Provider) broadcast(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
