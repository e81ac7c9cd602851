// Package auth orchestrates login, registration, and logout against the
// API client and the session store. It owns the session state machine:
// anonymous -> authenticating -> authenticated.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corvandale/leadctl/internal/api"
	"github.com/corvandale/leadctl/internal/model"
)

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// Client is the slice of the API client the controller needs.
type Client interface {
	Login(ctx context.Context, input api.LoginInput) (*model.Session, error)
	Register(ctx context.Context, input api.RegisterInput) (*model.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyToken(ctx context.Context) error
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (model.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// Store is the slice of the session store the controller needs.
type Store interface {
	Load(ctx context.Context) (*model.Session, error)
	Save(ctx context.Context, sess *model.Session) error
	Clear(ctx context.Context) error
	UpdateUser(ctx context.Context, user model.User) error
}

type Controller struct {
	client Client
	store  Store

	mu      sync.Mutex
	state   State
	user    *model.User
	lastErr error
}

func NewController(client Client, store Store) *Controller {
	return &Controller{
		client: client,
		store:  store,
		state:  StateAnonymous,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the authenticated user, or nil when anonymous.
func (c *Controller) CurrentUser() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	copied := *c.user
	return &copied
}

// LastError returns the most recent login or registration failure. It is
// cleared on the next attempt.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Login authenticates and persists the session. On failure the
// controller returns to anonymous with the previous session untouched.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, func(ctx context.Context) (*model.Session, error) {
		return c.client.Login(ctx, api.LoginInput{Email: email, Password: password})
	})
}

// Register creates an account and persists the resulting session.
func (c *Controller) Register(ctx context.Context, input api.RegisterInput) error {
	return c.authenticate(ctx, func(ctx context.Context) (*model.Session, error) {
		return c.client.Register(ctx, input)
	})
}

func (c *Controller) authenticate(ctx context.Context, attempt func(context.Context) (*model.Session, error)) error {
	c.setState(StateAuthenticating, nil)

	sess, err := attempt(ctx)
	if err != nil {
		c.setState(StateAnonymous, err)
		return err
	}

	if err := c.store.Save(ctx, sess); err != nil {
		c.setState(StateAnonymous, err)
		return fmt.Errorf("persist session: %w", err)
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.user = &sess.User
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}

// Logout is best-effort against the backend: a failed server round trip
// never blocks the local logout.
func (c *Controller) Logout(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err == nil && sess != nil {
		if err := c.client.Logout(ctx, sess.RefreshToken); err != nil {
			slog.Warn("server logout failed, clearing local session anyway", "error", err)
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.setState(StateAnonymous, nil)
	return nil
}

// Rehydrate restores the session from local storage at startup. The
// stored user is trusted without a verification round trip; a stale
// session surfaces later through the normal refresh-or-logout path.
func (c *Controller) Rehydrate(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate: %w", err)
	}
	if sess == nil {
		c.setState(StateAnonymous, nil)
		return nil
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.user = &sess.User
	c.mu.Unlock()
	return nil
}

// Verify checks the stored access token against the backend.
func (c *Controller) Verify(ctx context.Context) error {
	return c.client.VerifyToken(ctx)
}

// UpdateProfile patches the profile and refreshes the cached user.
func (c *Controller) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (model.User, error) {
	user, err := c.client.UpdateProfile(ctx, update)
	if err != nil {
		return model.User{}, err
	}

	if err := c.store.UpdateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("cache updated profile: %w", err)
	}

	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	return user, nil
}

// ChangePassword changes the account password. Tokens are unaffected.
func (c *Controller) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.client.ChangePassword(ctx, oldPassword, newPassword)
}

func (c *Controller) setState(s State, err error) {
	c.mu.Lock()
	c.state = s
	c.lastErr = err
	if s == StateAnonymous {
		c.user = nil
	}
	c.mu.Unlock()
}
