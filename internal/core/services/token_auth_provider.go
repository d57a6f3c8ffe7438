package services

import (
	"context"
	"sync"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
)

// TokenAuthProvider reports the sign-in state behind one access token.
// It starts loading and settles once Resolve has checked the token.
type TokenAuthProvider struct {
	auth  AuthService
	token string

	mu     sync.Mutex
	state  domain.AuthState
	subs   map[int]func(domain.AuthState)
	nextID int
}

var _ ports.AuthProvider = (*TokenAuthProvider)(nil)

func NewTokenAuthProvider(auth AuthService, token string) *TokenAuthProvider {
	return &TokenAuthProvider{
		auth:  auth,
		token: token,
		state: domain.AuthState{IsLoading: true},
		subs:  make(map[int]func(domain.AuthState)),
	}
}

// OnAuthStateChanged registers fn and immediately reports the current state.
func (p *TokenAuthProvider) OnAuthStateChanged(fn func(domain.AuthState)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	state := p.state
	p.mu.Unlock()

	fn(state)

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Resolve validates the token and loads its user. Any failure settles as
// signed out.
func (p *TokenAuthProvider) Resolve(ctx context.Context) (*domain.User, error) {
	claims, err := p.auth.ValidateToken(p.token)
	if err != nil {
		p.publish(domain.AuthState{})
		return nil, err
	}
	user, err := p.auth.User(ctx, claims.UserID)
	if err != nil {
		p.publish(domain.AuthState{})
		return nil, err
	}
	p.publish(domain.AuthState{User: user})
	return user, nil
}

// SetUser settles the state for a user already resolved elsewhere.
func (p *TokenAuthProvider) SetUser(user *domain.User) {
	p.publish(domain.AuthState{User: user})
}

func (p *TokenAuthProvider) SignOut(ctx context.Context) error {
	p.publish(domain.AuthState{})
	return nil
}

func (p *TokenAuthProvider) State() domain.AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *TokenAuthProvider) publish(state domain.AuthState) {
	p.mu.Lock()
	p.state = state
	subs := make([]func(domain.AuthState), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
