package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
)

const googleIssuer = "https://accounts.google.com"

// GoogleOAuthProvider implements OAuthProvider with the authorization code
// flow. The OIDC discovery document is fetched on first use, not at startup.
type GoogleOAuthProvider struct {
	oauthCfg *oauth2.Config
	clientID string

	mu       sync.Mutex
	oidcProv *oidc.Provider
}

func NewGoogleOAuthProvider(cfg *config.Config) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{
		clientID: cfg.GoogleClientID,
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}
}

func (p *GoogleOAuthProvider) AuthCodeURL(state string) string {
	return p.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleOAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauthCfg.Exchange(ctx, code)
}

// FetchUserInfo prefers the verified id_token claims and falls back to the
// userinfo endpoint when the token response carries none.
func (p *GoogleOAuthProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error) {
	if token == nil {
		return nil, errors.New("missing oauth token")
	}
	prov, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := prov.Verifier(&oidc.Config{ClientID: p.clientID}).Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("verify id token: %w", err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("decode id token claims: %w", err)
		}
	} else {
		info, err := prov.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("userinfo status: %w", err)
		}
		if err := info.Claims(&claims); err != nil {
			return nil, fmt.Errorf("decode userinfo claims: %w", err)
		}
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, errors.New("missing required userinfo fields")
	}
	return &OAuthUserInfo{
		ProviderUserID: claims.Sub,
		Email:          claims.Email,
		Name:           claims.Name,
		Picture:        claims.Picture,
		EmailVerified:  claims.EmailVerified,
	}, nil
}

func (p *GoogleOAuthProvider) discover(ctx context.Context) (*oidc.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oidcProv != nil {
		return p.oidcProv, nil
	}
	prov, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}
	p.oidcProv = prov
	return prov, nil
}
