// internal/auth/token.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dataverse-agent/internal/common/errors"
)

// TokenProvider supplies a bearer token for the Dataverse Web API.
// An empty token with a nil error means retrieval should degrade to
// empty results rather than fail.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ClientCredentials acquires tokens from Azure AD using the client
// credentials flow, scoped to the Dataverse environment. Tokens are
// cached until expiry.
type ClientCredentials struct {
	loginURL     string
	tenantID     string
	clientID     string
	clientSecret string
	scope        string
	httpClient   *http.Client
	accessToken  string
	tokenExpiry  time.Time
}

// tokenResponse holds the response from the Azure AD token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewClientCredentials creates a provider for the given tenant and
// Dataverse environment URL. The scope is {environmentURL}/.default.
func NewClientCredentials(tenantID, clientID, clientSecret, environmentURL string) *ClientCredentials {
	return &ClientCredentials{
		loginURL:     "https://login.microsoftonline.com",
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        strings.TrimSuffix(environmentURL, "/") + "/.default",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithLoginURL overrides the Azure AD base URL, used by tests.
func (p *ClientCredentials) WithLoginURL(base string) *ClientCredentials {
	p.loginURL = strings.TrimSuffix(base, "/")
	return p
}

// Token returns a cached token or fetches a new one when expired.
func (p *ClientCredentials) Token(ctx context.Context) (string, error) {
	if p.tokenExpiry.After(time.Now()) && p.accessToken != "" {
		return p.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginURL, p.tenantID)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("scope", p.scope)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", errors.NewAuthUnavailableError(err.Error())
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.NewAuthUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.NewAuthUnavailableError(
			fmt.Sprintf("token request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", errors.NewAuthUnavailableError(fmt.Sprintf("failed to decode token response: %v", err))
	}

	p.accessToken = tokenResp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return p.accessToken, nil
}

// Disabled is the provider used when Dataverse access is turned off.
// It always yields an empty token so callers skip remote fetches.
type Disabled struct{}

func (Disabled) Token(ctx context.Context) (string, error) { return "", nil }

// Static returns a fixed token, used by tests and local tooling.
type Static string

func (s Static) Token(ctx context.Context) (string, error) { return string(s), nil }
