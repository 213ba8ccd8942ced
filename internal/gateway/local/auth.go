package local

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/ikkim/storefront/pkg/util"
	"gorm.io/gorm"
)

type authAPI struct {
	b *Backend
}

func (a *authAPI) Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger.Info("Registering user", map[string]interface{}{
		"email": email,
	})

	fields := map[string]string{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "must be a valid email"
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		fields["full_name"] = "is required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(apperrors.ValidationInvalidInput, "some fields are invalid", fields)
	}
	if err := util.CheckPasswordStrength(req.Password); err != nil {
		return nil, apperrors.NewValidationError(apperrors.AuthWeakPassword,
			"password must be at least 8 characters and contain a letter and a digit",
			map[string]string{"password": "is too weak"})
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", err)
		return nil, apperrors.NewInternalError("", err)
	}

	user := &model.User{
		Email:          email,
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(req.DisplayName),
		Role:           model.RoleUser,
		IsActive:       true,
		EmailConfirmed: !a.b.opts.RequireEmailConfirmation,
	}
	if err := a.b.users.Create(ctx, user); err != nil {
		return nil, apperrors.ParseError(err, "create user")
	}

	result := &gateway.RegisterResult{Profile: user.Profile()}
	if user.EmailConfirmed {
		if result.Token, err = a.issueToken(user); err != nil {
			return nil, err
		}
	}

	logger.Info("User registered", map[string]interface{}{
		"user_id":       user.ID,
		"session_given": result.Token != "",
	})
	return result, nil
}

func (a *authAPI) Login(ctx context.Context, email, password string) (string, error) {
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := a.b.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: unknown email", map[string]interface{}{
				"email": email,
			})
			return "", apperrors.NewAuthError(apperrors.AuthInvalidCredentials, "incorrect email or password")
		}
		return "", apperrors.ParseError(err, "find user")
	}

	if !user.IsActive || !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid credentials", map[string]interface{}{
			"user_id": user.ID,
		})
		return "", apperrors.NewAuthError(apperrors.AuthInvalidCredentials, "incorrect email or password")
	}
	if !user.EmailConfirmed {
		return "", apperrors.NewAuthError(apperrors.AuthEmailNotConfirmed, "confirm your email address before signing in")
	}

	return a.issueToken(user)
}

func (a *authAPI) issueToken(user *model.User) (string, error) {
	token, err := util.GenerateAccessToken(user.ID, user.Email, string(user.Role), a.b.opts.JWTSecret, a.b.opts.TokenExpiry)
	if err != nil {
		logger.Error("Failed to generate access token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return "", apperrors.NewInternalError("", err)
	}
	return token, nil
}

// Logout revokes the caller's token. Tokens that are already invalid need no revocation.
func (a *authAPI) Logout(ctx context.Context) error {
	token := gateway.TokenFor(ctx, a.b.creds)
	if token == "" {
		return nil
	}
	claims, err := util.ValidateToken(token, a.b.opts.JWTSecret)
	if err != nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := a.b.revoker.Revoke(ctx, token, ttl); err != nil {
		logger.Error("Failed to revoke token", err, map[string]interface{}{
			"user_id": claims.UserID,
		})
		return apperrors.NewTransientError("could not sign out on the server", err)
	}

	logger.Info("User logged out", map[string]interface{}{
		"user_id": claims.UserID,
	})
	return nil
}

func (a *authAPI) CurrentUser(ctx context.Context) (*model.Profile, error) {
	claims, err := a.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	user, err := a.b.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// account removed since the token was issued
			return nil, apperrors.NewExpiredSessionError(err)
		}
		return nil, apperrors.ParseError(err, "find user")
	}

	profile := user.Profile()
	return &profile, nil
}
