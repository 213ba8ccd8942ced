package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/ikkim/storefront/pkg/util"
)

// SessionService is the single holder of the signed-in identity and its
// bearer token. Logout is its only teardown path.
type SessionService interface {
	gateway.CredentialSource

	// Restore hydrates the session from the store. It always marks the
	// service ready, even when nothing could be restored.
	Restore(ctx context.Context) (*model.Session, error)
	Ready() <-chan struct{}
	IsReady() bool
	Current() *model.Session

	Login(ctx context.Context, email, password string) (*model.Session, error)
	// Register returns a nil session when the account must be confirmed first.
	Register(ctx context.Context, req gateway.RegisterRequest) (*model.Session, error)
	Logout(ctx context.Context) error

	// HandleAuthFailure tears the session down when err reports an
	// expired session. It returns err unchanged.
	HandleAuthFailure(ctx context.Context, err error) error
	// OnLogout registers a reset hook run on every teardown.
	OnLogout(fn func(ctx context.Context))
}

type sessionService struct {
	auth      gateway.AuthAPI
	store     SessionStore
	publisher EventPublisher

	mu        sync.RWMutex
	session   *model.Session
	resetters []func(ctx context.Context)

	ready     chan struct{}
	readyOnce sync.Once
}

func NewSessionService(auth gateway.AuthAPI, store SessionStore, publisher EventPublisher) SessionService {
	return &sessionService{
		auth:      auth,
		store:     store,
		publisher: publisher,
		ready:     make(chan struct{}),
	}
}

func (s *sessionService) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *sessionService) Ready() <-chan struct{} {
	return s.ready
}

func (s *sessionService) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *sessionService) Restore(ctx context.Context) (*model.Session, error) {
	defer s.markReady()

	stored, err := s.store.Load(ctx)
	if err != nil {
		logger.Error("Failed to load persisted session", err)
		return nil, apperrors.NewInternalError("could not restore your session", err)
	}
	if stored == nil {
		logger.Info("No persisted session to restore")
		return nil, nil
	}

	if exp, ok := util.TokenExpiry(stored.BearerToken); ok && time.Now().After(exp) {
		logger.Info("Persisted session has expired, discarding", map[string]interface{}{
			"user_id":    stored.UserID,
			"expired_at": exp,
		})
		if err := s.store.Clear(ctx); err != nil {
			logger.Warn("Failed to clear expired session", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, nil
	}

	s.mu.Lock()
	s.session = stored
	s.mu.Unlock()

	logger.Info("Session restored", map[string]interface{}{
		"user_id": stored.UserID,
		"role":    stored.Role,
	})
	c := *stored
	return &c, nil
}

func (s *sessionService) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	c := *s.session
	return &c
}

func (s *sessionService) BearerToken() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.BearerToken
}

func (s *sessionService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	if email == "" || password == "" {
		return nil, apperrors.NewValidationError(apperrors.ValidationRequired, "email and password are required", nil)
	}

	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		logger.Warn("Login failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	profile, err := s.auth.CurrentUser(gateway.WithToken(ctx, token))
	if err != nil {
		logger.Error("Failed to load profile after login", err, map[string]interface{}{
			"email": email,
		})
		return nil, err
	}

	session := model.NewSession(*profile, token)
	if err := s.establish(ctx, session); err != nil {
		return nil, err
	}

	logger.Info("User logged in", map[string]interface{}{
		"user_id": session.UserID,
		"role":    session.Role,
	})
	c := *session
	return &c, nil
}

func (s *sessionService) Register(ctx context.Context, req gateway.RegisterRequest) (*model.Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	logger.Info("Attempting user registration", map[string]interface{}{
		"email": req.Email,
	})

	result, err := s.auth.Register(ctx, req)
	if err != nil {
		logger.Warn("Registration failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		return nil, err
	}
	if result.Token == "" {
		logger.Info("Registration awaits email confirmation", map[string]interface{}{
			"user_id": result.Profile.ID,
		})
		return nil, nil
	}

	session := model.NewSession(result.Profile, result.Token)
	if err := s.establish(ctx, session); err != nil {
		return nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": session.UserID,
	})
	c := *session
	return &c, nil
}

// establish persists and installs a new session. Switching users resets
// the state that belonged to the previous one.
func (s *sessionService) establish(ctx context.Context, session *model.Session) error {
	if err := s.store.Save(ctx, session); err != nil {
		logger.Error("Failed to persist session", err, map[string]interface{}{
			"user_id": session.UserID,
		})
		return apperrors.NewInternalError("could not save your session", err)
	}

	s.mu.Lock()
	previous := s.session
	s.session = session
	resetters := append([]func(context.Context){}, s.resetters...)
	s.mu.Unlock()

	if previous != nil && previous.UserID != session.UserID {
		for _, reset := range resetters {
			reset(ctx)
		}
	}
	s.markReady()
	return nil
}

// Logout always tears the session down locally. A failed remote logout is
// still reported to the caller.
func (s *sessionService) Logout(ctx context.Context) error {
	current := s.Current()
	if current == nil {
		return nil
	}
	logger.Info("Logging out", map[string]interface{}{
		"user_id": current.UserID,
	})

	remoteErr := s.auth.Logout(gateway.WithToken(ctx, current.BearerToken))
	if remoteErr != nil {
		logger.Warn("Remote logout failed, clearing local session anyway", map[string]interface{}{
			"user_id": current.UserID,
			"error":   remoteErr.Error(),
		})
	}

	s.teardown(ctx, "logout")
	return remoteErr
}

func (s *sessionService) HandleAuthFailure(ctx context.Context, err error) error {
	if err != nil && apperrors.IsExpiredSession(err) {
		if current := s.Current(); current != nil {
			logger.Warn("Session expired, signing out", map[string]interface{}{
				"user_id": current.UserID,
			})
			s.teardown(ctx, "expired")
		}
	}
	return err
}

func (s *sessionService) OnLogout(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetters = append(s.resetters, fn)
}

func (s *sessionService) teardown(ctx context.Context, reason string) {
	s.mu.Lock()
	previous := s.session
	s.session = nil
	resetters := append([]func(context.Context){}, s.resetters...)
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		logger.Error("Failed to clear persisted session", err)
	}
	for _, reset := range resetters {
		reset(ctx)
	}
	if previous != nil {
		publish(s.publisher, previous.UserID, EventSessionEnded, map[string]string{"reason": reason})
	}
}
