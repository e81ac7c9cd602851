package api

import (
	"context"
	"net/http"

	"github.com/corvandale/leadctl/internal/model"
)

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
}

// authPayload is the login/register response body.
type authPayload struct {
	User         model.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

// Login authenticates with email and password and returns the resulting
// session. The session is not persisted here; that is the controller's job.
func (c *Client) Login(ctx context.Context, input LoginInput) (*model.Session, error) {
	var payload authPayload
	err := c.do(ctx, http.MethodPost, "/auth/login/", input, &payload, requestOptions{skipRefresh: true})
	if err != nil {
		return nil, err
	}
	return sessionFromPayload(payload)
}

// Register creates an account and returns the resulting session.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*model.Session, error) {
	var payload authPayload
	err := c.do(ctx, http.MethodPost, "/auth/register/", input, &payload, requestOptions{skipRefresh: true})
	if err != nil {
		return nil, err
	}
	return sessionFromPayload(payload)
}

func sessionFromPayload(payload authPayload) (*model.Session, error) {
	sess := &model.Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		User:         payload.User,
	}
	if !sess.Valid() {
		return nil, &APIError{Message: "Invalid response: missing authentication tokens"}
	}
	return sess, nil
}

// Logout invalidates the refresh token server-side. Callers treat a
// failure here as non-fatal; local state is cleared regardless.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.do(ctx, http.MethodPost, "/auth/logout/", body, nil, requestOptions{skipRefresh: true})
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	body := map[string]string{"refresh": refreshToken}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/token/refresh/", body, &payload, requestOptions{skipRefresh: true})
	if err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", &APIError{Message: "Invalid refresh response: missing access token"}
	}
	return payload.AccessToken, nil
}

// VerifyToken checks the stored access token against the backend.
func (c *Client) VerifyToken(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/token/verify/", nil, nil, requestOptions{skipRefresh: true})
}

// UpdateProfile patches the account profile and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPatch, "/auth/profile/", update, &user, requestOptions{})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// ChangePassword changes the account password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}
	return c.do(ctx, http.MethodPost, "/auth/change-password/", body, nil, requestOptions{})
}
