package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const oauthClient = `{"installed":{"client_id":"finanzas.apps.googleusercontent.com","client_secret":"secret",` +
	`"redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth",` +
	`"token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig(oauthClient, "")
	require.NoError(t, err)
	assert.Equal(t, "finanzas.apps.googleusercontent.com", cfg.ClientID)
	assert.Contains(t, cfg.Scopes, "https://www.googleapis.com/auth/spreadsheets")

	file := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(file, []byte(oauthClient), 0o600))
	cfg, err = OAuthConfig("", file)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.ClientSecret)

	_, err = OAuthConfig("", "")
	assert.ErrorContains(t, err, "GOOGLE_OAUTH_CLIENT_JSON")
	_, err = OAuthConfig("{}", "")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	expiry := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(expiry))

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err = LoadToken(path)
	assert.ErrorContains(t, err, "no access or refresh token")
}

func TestOAuthOption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

	opts, err := OAuthOption(context.Background(), oauthClient, "", path)
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = OAuthOption(context.Background(), oauthClient, "", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read oauth token")
}
