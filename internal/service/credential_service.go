package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"bizops_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// StateStore binds a one-time OAuth state value to the user who asked for it.
type StateStore interface {
	Save(ctx context.Context, state string, userID uint, ttl time.Duration) error
	Consume(ctx context.Context, state string) (uint, error)
}

// CredentialStatus is the view of a user's delegated credential.
type CredentialStatus struct {
	Connected  bool       `json:"connected"`
	Expired    bool       `json:"expired"`
	CanRefresh bool       `json:"canRefresh"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// CredentialService owns the delegated credential lifecycle
// (absent -> valid -> expired) for every user.
type CredentialService struct {
	Credentials *repository.CredentialRepository
	States      StateStore
	Auth        provider.Authorizer
	Config      config.GoogleConfig

	now func() time.Time
}

func NewCredentialService(creds *repository.CredentialRepository, states StateStore, auth provider.Authorizer, cfg config.GoogleConfig) *CredentialService {
	return &CredentialService{
		Credentials: creds,
		States:      states,
		Auth:        auth,
		Config:      cfg,
		now:         time.Now,
	}
}

// AuthURL issues an authorization URL whose state is bound to userID.
func (s *CredentialService) AuthURL(ctx context.Context, userID uint) (string, error) {
	state := uuid.NewString()
	if err := s.States.Save(ctx, state, userID, s.Config.StateTTL()); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return s.Auth.AuthCodeURL(state), nil
}

// HandleCallback completes the authorization flow and stores the granted
// credential for the user bound to state.
func (s *CredentialService) HandleCallback(ctx context.Context, state, code string) (uint, error) {
	userID, err := s.States.Consume(ctx, state)
	if err != nil {
		return 0, err
	}
	tok, err := s.Auth.Exchange(ctx, code)
	if err != nil {
		return 0, err
	}
	if err := s.save(ctx, userID, tok); err != nil {
		return 0, err
	}
	logger.Log.Info("Google credential connected", zap.Uint("userID", userID))
	return userID, nil
}

// TokenFor returns a usable token for userID. An absent or expired credential
// yields a CredentialRequiredError without any provider call, unless silent
// refresh is enabled and a refresh token is stored.
func (s *CredentialService) TokenFor(ctx context.Context, userID uint) (*oauth2.Token, error) {
	cred, err := s.Credentials.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.requireAuth(ctx, userID, errors.New("no google credential"))
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	if !s.expired(cred) {
		return toToken(cred), nil
	}
	if cred.RefreshToken == "" || !s.Config.SilentRefresh {
		return nil, s.requireAuth(ctx, userID, errors.New("google credential expired"))
	}

	tok, err := s.Auth.Refresh(ctx, toToken(cred))
	if err != nil {
		logger.Log.Warn("Silent token refresh failed", zap.Uint("userID", userID), zap.Error(err))
		return nil, s.requireAuth(ctx, userID, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.RefreshToken
	}
	if err := s.save(ctx, userID, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// ProviderError converts a provider failure into the caller-facing error. An
// authorization rejection expires the stored credential and asks for a new
// grant.
func (s *CredentialService) ProviderError(ctx context.Context, userID uint, op string, err error) error {
	if errors.Is(err, provider.ErrUnauthorized) {
		if markErr := s.Credentials.MarkExpired(ctx, userID, s.now().Add(-time.Second)); markErr != nil {
			logger.Log.Error("Failed to expire rejected credential", zap.Uint("userID", userID), zap.Error(markErr))
		}
		return s.requireAuth(ctx, userID, err)
	}
	return &ProviderFailedError{Op: op, Detail: err.Error(), Err: err}
}

func (s *CredentialService) Status(ctx context.Context, userID uint) (*CredentialStatus, error) {
	cred, err := s.Credentials.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CredentialStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CredentialStatus{
		Connected:  true,
		Expired:    s.expired(cred),
		CanRefresh: cred.RefreshToken != "",
		ExpiresAt:  cred.Expiry,
	}, nil
}

func (s *CredentialService) Disconnect(ctx context.Context, userID uint) error {
	return s.Credentials.Delete(ctx, userID)
}

func (s *CredentialService) requireAuth(ctx context.Context, userID uint, cause error) error {
	url, err := s.AuthURL(ctx, userID)
	if err != nil {
		return fmt.Errorf("authorization required but no URL could be issued: %w", err)
	}
	return &CredentialRequiredError{AuthURL: url, Cause: cause}
}

func (s *CredentialService) expired(c *model.GoogleCredential) bool {
	return c.Expiry != nil && !c.Expiry.After(s.now())
}

func (s *CredentialService) save(ctx context.Context, userID uint, tok *oauth2.Token) error {
	cred := &model.GoogleCredential{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		cred.Expiry = &expiry
	}
	if err := s.Credentials.Upsert(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func toToken(c *model.GoogleCredential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
	}
	if c.Expiry != nil {
		tok.Expiry = *c.Expiry
	}
	return tok
}
