package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/telemetry"
)

// User is the subset of an identity-provider user record we read and write.
type User struct {
	ID         string         `json:"id"`
	CustomData map[string]any `json:"customData"`
}

// Client talks to the identity provider's management API using tokens from a
// TokenSource.
type Client struct {
	endpoint   string
	tokens     *TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a management API client for the identity provider at
// endpoint.
func NewClient(endpoint string, tokens *TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "identity").Logger(),
	}
}

// GetUser fetches a user record, including its custom data.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	start := time.Now()
	defer c.observe("get_user", start)

	body, status, err := c.do(ctx, http.MethodGet, "/api/users/"+userID, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.NotFound("identity.get_user", "user", userID)
	}
	if status != http.StatusOK {
		return nil, domain.Errorf(domain.EUNAVAILABLE, "identity.get_user",
			"management API returned status %d", status)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, domain.Unavailable(err, "identity.get_user", "failed to decode user record")
	}
	return &user, nil
}

// PatchCustomData replaces the user's custom data. Callers are responsible
// for merging: the management API overwrites the whole customData object.
func (c *Client) PatchCustomData(ctx context.Context, userID string, customData map[string]any) error {
	start := time.Now()
	defer c.observe("patch_custom_data", start)

	payload, err := json.Marshal(map[string]any{"customData": customData})
	if err != nil {
		return domain.Internal(err, "identity.patch_custom_data", "failed to encode custom data")
	}

	body, status, err := c.do(ctx, http.MethodPatch, "/api/users/"+userID, payload)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.NotFound("identity.patch_custom_data", "user", userID)
	}
	if status < 200 || status >= 300 {
		c.logger.Error().
			Int("status", status).
			Str("user_id", userID).
			Str("response", string(body)).
			Msg("custom data update rejected")
		return domain.Errorf(domain.EUNAVAILABLE, "identity.patch_custom_data",
			"management API returned status %d", status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, 0, domain.Internal(err, "identity.request", "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, domain.Unavailable(err, "identity.request", "management API unreachable")
	}
	defer resp.Body.Close()

	// Stale token: drop the cache so the next attempt re-authenticates.
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, domain.Unavailable(err, "identity.request", "failed to read response body")
	}
	return body, resp.StatusCode, nil
}

func (c *Client) observe(operation string, start time.Time) {
	if telemetry.Billing != nil {
		telemetry.Billing.IdentityLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
