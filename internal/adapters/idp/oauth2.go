package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// OAuth2 authenticates through a resource-owner password grant. The token
// response is expected to carry "sub" and optionally "name" next to the
// access token; the email stands in for both when they are missing.
type OAuth2 struct {
	cfg *oauth2.Config
}

// NewOAuth2 creates a provider posting to tokenURL.
func NewOAuth2(tokenURL, clientID, clientSecret string, scopes ...string) (*OAuth2, error) {
	if tokenURL == "" || clientID == "" {
		return nil, errors.New("oauth2 identity provider needs token url and client id")
	}
	return &OAuth2{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}}, nil
}

// Authenticate implements Provider.
func (o *OAuth2) Authenticate(ctx context.Context, email, password string) (Subject, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Subject{}, ErrInvalidCredentials
	}
	tok, err := o.cfg.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			switch rerr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return Subject{}, ErrInvalidCredentials
			}
		}
		return Subject{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	sub := Subject{ID: email, Name: email, Email: email}
	if v, ok := tok.Extra("sub").(string); ok && v != "" {
		sub.ID = v
	}
	if v, ok := tok.Extra("name").(string); ok && v != "" {
		sub.Name = v
	}
	return sub, nil
}
