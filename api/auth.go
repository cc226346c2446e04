package api

import (
	"context"
	"net/http"

	auth "github.com/marketsim/portal-auth"
)

const (
	loginPath          = "/auth/login"
	signupPath         = "/auth/signup"
	profilePath        = "/auth/profile"
	changePasswordPath = "/auth/change-password"
)

// Login posts credentials to /auth/login. The request never carries a
// session token and a 401 does not touch the current session.
func (c *Client) Login(ctx context.Context, payload auth.LoginRequest) (*auth.AuthResponse, error) {
	resp := new(auth.AuthResponse)
	if err := c.do(auth.AnonymousRequest(ctx), http.MethodPost, loginPath, nil, payload, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Signup posts a new account to /auth/signup
func (c *Client) Signup(ctx context.Context, payload auth.SignupRequest) (*auth.AuthResponse, error) {
	resp := new(auth.AuthResponse)
	if err := c.do(auth.AnonymousRequest(ctx), http.MethodPost, signupPath, nil, payload, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type profileResponse struct {
	Message string     `json:"message,omitempty"`
	User    *auth.User `json:"user"`
}

// Profile returns the signed in user as the backend knows it
func (c *Client) Profile(ctx context.Context) (*auth.User, error) {
	resp := new(profileResponse)
	if err := c.get(ctx, profilePath, nil, resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, auth.DeriveError(auth.ErrBackendUnavailable, "profile response has no user", nil)
	}
	return resp.User, nil
}

// UpdateProfile changes the profile and returns the stored record
func (c *Client) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	resp := new(profileResponse)
	if err := c.do(ctx, http.MethodPut, profilePath, nil, update, resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, auth.DeriveError(auth.ErrBackendUnavailable, "profile response has no user", nil)
	}
	return resp.User, nil
}

// ChangePassword changes the account password. A wrong current password is
// answered with 401 by the backend, which here does not end the session.
func (c *Client) ChangePassword(ctx context.Context, payload auth.ChangePasswordRequest) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	return c.do(auth.KeepSessionOn401(ctx), http.MethodPost, changePasswordPath, nil, payload, nil)
}
