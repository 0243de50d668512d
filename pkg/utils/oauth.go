package utils

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth scopes for Google APIs
const (
	ScopeGmailSend = "https://www.googleapis.com/auth/gmail.send"
)

// BearerTokenClient returns an HTTP client that sends token as a static bearer token
func BearerTokenClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})

	client := oauth2.NewClient(ctx, tokenSource)
	client.Timeout = timeout
	return client
}

// ServiceAccountClient returns an HTTP client authorised as the service account in credentialsFile.
// subject is the user the account impersonates through domain-wide delegation; empty means none.
func ServiceAccountClient(ctx context.Context, credentialsFile, subject string, scopes ...string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account credentials: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	jwtConfig.Subject = subject

	return jwtConfig.Client(ctx), nil
}
