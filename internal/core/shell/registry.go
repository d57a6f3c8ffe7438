package shell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"locallive/internal/core/controllers"
	"locallive/internal/core/domain"
	"locallive/internal/core/services"
	"locallive/pkg/cache"

	"go.uber.org/zap"
)

type entry struct {
	shell    *Shell
	provider *services.TokenAuthProvider
}

// Registry keeps one Shell per signed-in user. Shells idle longer than the
// TTL are signed out and closed.
type Registry struct {
	auth   services.AuthService
	deps   *controllers.Deps
	cfg    Config
	logger *zap.SugaredLogger
	shells *cache.Cache[*entry]

	// create serializes shell construction so a user never gets two.
	create sync.Mutex
}

func NewRegistry(auth services.AuthService, deps *controllers.Deps, cfg Config, idleTTL time.Duration, logger *zap.SugaredLogger) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	r := &Registry{
		auth:   auth,
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
	r.shells = cache.New[*entry](idleTTL, cache.WithOnEvict(func(userID string, e *entry) {
		_ = e.provider.SignOut(context.Background())
		e.shell.Close()
		logger.Debugw("shell evicted", "user_id", userID)
	}))
	return r
}

// ForToken returns the shell of the token's user, creating it on first use.
func (r *Registry) ForToken(ctx context.Context, token string) (*Shell, error) {
	claims, err := r.auth.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	key := string(claims.UserID)

	if e, ok := r.shells.Get(key); ok {
		r.shells.Touch(key)
		return e.shell, nil
	}

	r.create.Lock()
	defer r.create.Unlock()
	e, err := r.shells.GetOrSet(ctx, key, func(ctx context.Context) (*entry, error) {
		provider := services.NewTokenAuthProvider(r.auth, token)
		sh := New(provider, r.deps, r.cfg, r.logger.With("user_id", key))
		sh.Start()
		if _, err := provider.Resolve(ctx); err != nil {
			sh.Close()
			return nil, fmt.Errorf("failed to resolve user: %w", err)
		}
		return &entry{shell: sh, provider: provider}, nil
	})
	if err != nil {
		return nil, err
	}
	return e.shell, nil
}

// SignOut signs the user out and drops their shell.
func (r *Registry) SignOut(userID domain.UserID) {
	r.shells.Delete(string(userID))
}

func (r *Registry) Size() int {
	return r.shells.Size()
}

// Close signs out every shell and stops the idle sweep.
func (r *Registry) Close() {
	r.shells.Clear()
	r.shells.Stop()
}
