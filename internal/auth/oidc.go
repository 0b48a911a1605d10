package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig carries the identity provider settings.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// TokenClaims is the subset of identity provider claims used to provision
// and link local accounts.
type TokenClaims struct {
	Subject     string
	Email       string `json:"email"`
	Name        string `json:"name"`
	Username    string `json:"preferred_username"`
	Picture     string `json:"picture"`
	Issuer      string `json:"iss"`
	EmailVerify bool   `json:"email_verified"`
}

// OIDCClient talks to a single OpenID Connect identity provider. It serves
// both the browser authorization-code flow and bearer token verification for
// API clients, so it satisfies TokenVerifier.
type OIDCClient struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

// NewOIDCClient discovers the provider configuration from the issuer URL.
func NewOIDCClient(ctx context.Context, cfg OIDCConfig) (*OIDCClient, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCClient{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// AuthCodeURL builds the provider authorization URL for the given state.
func (c *OIDCClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens and returns the verified
// claims of the embedded ID token.
func (c *OIDCClient) Exchange(ctx context.Context, code string) (*TokenClaims, *oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, nil, fmt.Errorf("token response carries no id_token")
	}
	claims, err := c.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, nil, err
	}
	return claims, token, nil
}

// VerifyIDToken checks signature, audience and expiry of a raw ID token and
// extracts its claims.
func (c *OIDCClient) VerifyIDToken(ctx context.Context, rawIDToken string) (*TokenClaims, error) {
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	var claims TokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id token claims: %w", err)
	}
	claims.Subject = idToken.Subject
	return &claims, nil
}

// Verify validates a bearer access token by calling the provider's userinfo
// endpoint. Any failure, including the provider being unreachable, rejects
// the token.
func (c *OIDCClient) Verify(ctx context.Context, rawToken string) (string, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: rawToken, TokenType: "Bearer"})
	info, err := c.provider.UserInfo(ctx, source)
	if err != nil {
		return "", fmt.Errorf("userinfo: %w", err)
	}
	if info.Subject == "" {
		return "", fmt.Errorf("userinfo response carries no subject")
	}
	return info.Subject, nil
}

// Refresh exchanges a refresh token for a fresh token set.
func (c *OIDCClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return token, nil
}
