package remote

import (
	"context"

	"minima/minima/sync/model"
)

// Provider mirrors the identity provider capability.
type Provider interface {
	GetSession(ctx context.Context) (*model.Identity, error)
	SignUp(ctx context.Context, email, password string) (*model.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  authUser `json:"user"`
}

func (u authUser) identity() *model.Identity {
	return &model.Identity{ID: u.ID, Email: u.Email, Name: u.Name}
}

// GetSession resolves the stored token back to its identity, or nil when no
// token is held.
func (c *Client) GetSession(ctx context.Context) (*model.Identity, error) {
	if c.Token() == "" {
		return nil, nil
	}
	var resp struct {
		User authUser `json:"user"`
	}
	if err := c.do(ctx, "GET", "/auth/session", nil, &resp); err != nil {
		if err == model.ErrUnauthenticated {
			c.SetToken("")
			return nil, nil
		}
		return nil, err
	}
	return resp.User.identity(), nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, "POST", "/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return resp.User.identity(), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Identity, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, "POST", "/auth/login", body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return resp.User.identity(), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, "POST", "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}
