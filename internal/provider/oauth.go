package provider

import (
	"bizops_backend/internal/config"
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/forms/v1"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested from the user: form authoring, response reading and
// spreadsheet creation.
var Scopes = []string{
	forms.FormsBodyScope,
	forms.FormsResponsesReadonlyScope,
	sheets.SpreadsheetsScope,
}

type GoogleOAuth struct {
	cfg *oauth2.Config
}

var _ Authorizer = (*GoogleOAuth)(nil)

func NewGoogleOAuth(cfg config.GoogleConfig) *GoogleOAuth {
	return &GoogleOAuth{cfg: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     googleoauth.Endpoint,
	}}
}

// AuthCodeURL asks for offline access and forces the consent screen so a
// refresh token is issued on every grant.
func (o *GoogleOAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (o *GoogleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, classifyOAuth("exchange code", err)
	}
	return tok, nil
}

func (o *GoogleOAuth) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("refresh: %w: no refresh token", ErrUnauthorized)
	}
	// a token carrying only the refresh token forces a round trip
	tok, err := o.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	if err != nil {
		return nil, classifyOAuth("refresh", err)
	}
	return tok, nil
}

func classifyOAuth(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, rerr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
