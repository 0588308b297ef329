package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/teachlink/client-core/internal/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleExchanger turns an OAuth authorization code into the provider
// credential the social login endpoint expects. The browser leg (opening the
// consent URL, catching the redirect) belongs to the caller.
type GoogleExchanger struct {
	cfg *oauth2.Config
}

func NewGoogleExchanger(clientID, clientSecret, redirectURL string) *GoogleExchanger {
	return &GoogleExchanger{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
	}
}

// AuthURL is the consent page URL for the given CSRF state.
func (g *GoogleExchanger) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange redeems the authorization code and extracts the id_token.
func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (domain.SocialCredential, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return domain.SocialCredential{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return domain.SocialCredential{}, errors.New("provider response carried no id_token")
	}
	return domain.SocialCredential{
		Provider:    "google",
		IDToken:     idToken,
		AccessToken: tok.AccessToken,
	}, nil
}
