package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pverheyen/heimdall/internal/domain"
)

// Machine-to-machine tokens are refreshed this long before they expire so
// in-flight requests never race an expiring token.
const tokenRefreshWindow = 6 * time.Minute

const (
	tokenResource = "https://default.logto.app/api"
	tokenScope    = "all"
)

// TokenSource fetches and caches machine-to-machine access tokens via the
// OAuth client_credentials grant. Safe for concurrent use.
type TokenSource struct {
	endpoint   string
	appID      string
	appSecret  string
	httpClient *http.Client

	mu      sync.Mutex
	value   string
	expires time.Time
}

// NewTokenSource creates a token source for the identity provider at
// endpoint, authenticating as the given machine-to-machine application.
func NewTokenSource(endpoint, appID, appSecret string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		appID:      appID,
		appSecret:  appSecret,
		httpClient: httpClient,
	}
}

// Token returns a cached access token, refreshing it when it is within the
// refresh window of expiry.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.value != "" && time.Now().Before(t.expires.Add(-tokenRefreshWindow)) {
		return t.value, nil
	}

	token, expiresIn, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	t.value = token
	t.expires = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return t.value, nil
}

func (t *TokenSource) fetch(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("resource", tokenResource)
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/oidc/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, domain.Internal(err, "identity.token", "failed to build token request")
	}
	req.SetBasicAuth(t.appID, t.appSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, domain.Unavailable(err, "identity.token", "token endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, domain.Errorf(domain.EUNAVAILABLE, "identity.token",
			"token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, domain.Unavailable(err, "identity.token", "failed to decode token response")
	}
	if body.AccessToken == "" {
		return "", 0, domain.Errorf(domain.EUNAVAILABLE, "identity.token", "token endpoint returned empty token")
	}
	return body.AccessToken, body.ExpiresIn, nil
}

// Invalidate discards the cached token so the next call fetches a fresh one.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = ""
	t.expires = time.Time{}
}
