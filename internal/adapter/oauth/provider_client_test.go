package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	oauthadapter "github.com/lectory/lectory-auth/internal/adapter/oauth"
	"github.com/lectory/lectory-auth/internal/domain"
)

func stubProvider(t *testing.T, userinfo map[string]any) (*httptest.Server, oauthadapter.ProviderConfig) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "provider-token"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer provider-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, oauthadapter.ProviderConfig{
		Name:         "github",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		Scopes:       []string{"read:user", "user:email"},
		RedirectURL:  "http://localhost:8080/auth/github/callback",
	}
}

func TestAuthorizationURL(t *testing.T) {
	srv, cfg := stubProvider(t, nil)
	client := oauthadapter.NewStaticProviderClient(srv.Client(), cfg)

	raw, err := client.AuthorizationURL("github", "corr-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "corr-1", q.Get("state"))
	require.Equal(t, "read:user user:email", q.Get("scope"))
}

func TestAuthorizationURLUnknownProvider(t *testing.T) {
	srv, cfg := stubProvider(t, nil)
	client := oauthadapter.NewStaticProviderClient(srv.Client(), cfg)

	_, err := client.AuthorizationURL("gitlab", "corr-1")
	require.ErrorIs(t, err, domain.ErrInvalidProvider)
}

func TestExchangeReturnsIdentity(t *testing.T) {
	srv, cfg := stubProvider(t, map[string]any{
		"email": "alice@example.com",
		"name":  "Alice",
	})
	client := oauthadapter.NewStaticProviderClient(srv.Client(), cfg)

	identity, err := client.Exchange(context.Background(), "github", "good-code")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", identity.Email)
	require.Equal(t, "Alice", identity.DisplayNameHint)
}

func TestExchangeFallsBackOnAlternateFields(t *testing.T) {
	srv, cfg := stubProvider(t, map[string]any{
		"default_email": "bob@yandex.example",
		"display_name":  "Bob",
	})
	client := oauthadapter.NewStaticProviderClient(srv.Client(), cfg)

	identity, err := client.Exchange(context.Background(), "github", "good-code")
	require.NoError(t, err)
	require.Equal(t, "bob@yandex.example", identity.Email)
	require.Equal(t, "Bob", identity.DisplayNameHint)
}

func TestExchangeEmailFallback(t *testing.T) {
	srv, cfg := stubProvider(t, map[string]any{"login": "ghost"})
	client := oauthadapter.NewStaticProviderClient(srv.Client(), cfg)

	identity, err := client.Exchange(context.Background(), "github", "good-code")
	require.NoError(t, err)
	require.Equal(t, "no-email@github", identity.Email)
	require.Equal(t, "ghost", identity.DisplayNameHint)
}

func TestExchangeProviderFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := oauthadapter.NewStaticProviderClient(srv.Client(), oauthadapter.ProviderConfig{
		Name:     "github",
		TokenURL: srv.URL + "/token",
	})

	_, err := client.Exchange(context.Background(), "github", "bad-code")
	require.ErrorIs(t, err, domain.ErrProviderError)
}
