// Package oauth encapsulates outbound HTTP calls to external identity
// providers. The broker treats providers as a black box exchanging an
// authorization code for a verified email and display name.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lectory/lectory-auth/internal/config"
	"github.com/lectory/lectory-auth/internal/domain"
)

// Identity is what a provider vouches for after a successful exchange.
type Identity struct {
	Email           string
	DisplayNameHint string
}

// Exchanger is the collaborator contract consumed by the login
// orchestrator.
type Exchanger interface {
	// AuthorizationURL builds the provider redirect URL carrying the
	// correlation id as the opaque state value. Unknown providers fail
	// with domain.ErrInvalidProvider.
	AuthorizationURL(provider, state string) (string, error)
	// Exchange trades the authorization code for a provider identity.
	// Network or response failures surface as domain.ErrProviderError.
	Exchange(ctx context.Context, provider, code string) (Identity, error)
}

// ProviderConfig describes one upstream IdP.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	RedirectURL  string
}

// HTTPProviderClient is the default Exchanger over net/http.
type HTTPProviderClient struct {
	providers  map[string]ProviderConfig
	httpClient *http.Client
}

var _ Exchanger = (*HTTPProviderClient)(nil)

// NewHTTPProviderClient registers the known provider set from config.
// Providers without a configured client id are left unregistered and fail
// as unknown.
func NewHTTPProviderClient(cfg config.Config, client *http.Client) *HTTPProviderClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	providers := make(map[string]ProviderConfig)
	if cfg.GithubClientID != "" {
		providers["github"] = ProviderConfig{
			Name:         "github",
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			UserInfoURL:  "https://api.github.com/user",
			Scopes:       []string{"read:user", "user:email"},
			RedirectURL:  cfg.PublicBaseURL + "/auth/github/callback",
		}
	}
	if cfg.YandexClientID != "" {
		providers["yandex"] = ProviderConfig{
			Name:         "yandex",
			ClientID:     cfg.YandexClientID,
			ClientSecret: cfg.YandexClientSecret,
			AuthURL:      "https://oauth.yandex.ru/authorize",
			TokenURL:     "https://oauth.yandex.ru/token",
			UserInfoURL:  "https://login.yandex.ru/info?format=json",
			RedirectURL:  cfg.PublicBaseURL + "/auth/yandex/callback",
		}
	}
	return &HTTPProviderClient{providers: providers, httpClient: client}
}

// NewStaticProviderClient builds a client from explicit provider configs,
// used by tests pointing at a stub server.
func NewStaticProviderClient(client *http.Client, configs ...ProviderConfig) *HTTPProviderClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	providers := make(map[string]ProviderConfig, len(configs))
	for _, cfg := range configs {
		providers[cfg.Name] = cfg
	}
	return &HTTPProviderClient{providers: providers, httpClient: client}
}

func (c *HTTPProviderClient) AuthorizationURL(provider, state string) (string, error) {
	cfg, ok := c.providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidProvider, provider)
	}

	u, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	params := u.Query()
	params.Set("client_id", cfg.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", cfg.RedirectURL)
	params.Set("state", state)
	if len(cfg.Scopes) > 0 {
		params.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (c *HTTPProviderClient) Exchange(ctx context.Context, provider, code string) (Identity, error) {
	cfg, ok := c.providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", domain.ErrInvalidProvider, provider)
	}

	accessToken, err := c.exchangeCode(ctx, cfg, code)
	if err != nil {
		return Identity{}, err
	}

	raw, err := c.fetchUserInfo(ctx, cfg, accessToken)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{
		Email:           stringValue(coalesce(raw["email"], raw["default_email"])),
		DisplayNameHint: stringValue(coalesce(raw["name"], raw["display_name"], raw["login"])),
	}
	if identity.Email == "" {
		// GitHub hides the email unless public; fall back to a stable
		// provider-derived placeholder address.
		identity.Email = fmt.Sprintf("no-email@%s", cfg.Name)
	}
	return identity, nil
}

func (c *HTTPProviderClient) exchangeCode(ctx context.Context, cfg ProviderConfig, code string) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", cfg.RedirectURL)
	data.Set("client_id", cfg.ClientID)
	if cfg.ClientSecret != "" {
		data.Set("client_secret", cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read token response: %v", domain.ErrProviderError, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token exchange status=%d", domain.ErrProviderError, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domain.ErrProviderError, err)
	}
	accessToken := stringValue(raw["access_token"])
	if accessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrProviderError)
	}
	return accessToken, nil
}

func (c *HTTPProviderClient) fetchUserInfo(ctx context.Context, cfg ProviderConfig, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read userinfo: %v", domain.ErrProviderError, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: userinfo status=%d", domain.ErrProviderError, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", domain.ErrProviderError, err)
	}
	return raw, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func coalesce(values ...any) any {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return v
		}
	}
	return nil
}
