package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
)

type authAPI struct {
	c *Client
}

func (a *authAPI) Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.RegisterResult, error) {
	var user wireUser
	if _, err := a.c.do(ctx, http.MethodPost, "/auth/register", nil, req, &user); err != nil {
		if isAlreadyExists(err) {
			return nil, apperrors.Wrap(apperrors.KindConflict, apperrors.AuthEmailAlreadyExists,
				"an account with this email already exists", err)
		}
		return nil, err
	}
	return &gateway.RegisterResult{Profile: user.profile(), Token: user.AccessToken}, nil
}

// Login posts OAuth2 password-grant style form fields.
func (a *authAPI) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var token tokenResponse
	// never send a stale bearer along with credentials
	ctx = gateway.WithToken(ctx, "")
	if _, err := a.c.do(ctx, http.MethodPost, "/auth/token", nil, form, &token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", apperrors.Wrap(apperrors.KindInternal, apperrors.InternalExternalAPI,
			"the server sent an unexpected response", nil)
	}
	return token.AccessToken, nil
}

func (a *authAPI) Logout(ctx context.Context) error {
	_, err := a.c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	return err
}

func (a *authAPI) CurrentUser(ctx context.Context) (*model.Profile, error) {
	if gateway.TokenFor(ctx, a.c.creds) == "" {
		return nil, apperrors.NewNotAuthenticatedError("")
	}
	var user wireUser
	if _, err := a.c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	profile := user.profile()
	return &profile, nil
}
