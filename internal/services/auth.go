package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/rolx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// NewCatalogClient returns the HTTP client used for catalog requests.
//
// When client credentials are configured the returned client fetches and refreshes a bearer
// token from the token URL before each request; otherwise it is a plain client with the
// configured timeout.
func NewCatalogClient(ctx context.Context, cfg shared.CatalogConfig) *http.Client {
	timeout := shared.Seconds(cfg.TimeoutSeconds)
	base := &http.Client{Timeout: timeout}
	if !cfg.Auth.Enabled() {
		return base
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TokenURL:     cfg.Auth.TokenURL,
		Scopes:       cfg.Auth.Scopes,
	}

	client := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = timeout
	return client
}
