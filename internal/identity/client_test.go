package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pverheyen/heimdall/internal/domain"
)

func tokenHandler(t *testing.T, tokenCalls *atomic.Int64, expiresIn int64) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "app_id", user)
		assert.Equal(t, "app_secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://default.logto.app/api", r.PostForm.Get("resource"))
		assert.Equal(t, "all", r.PostForm.Get("scope"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok_abc",
			"expires_in":   expiresIn,
		})
	}
}

func TestTokenSourceCachesToken(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oidc/token", r.URL.Path)
		tokenHandler(t, &tokenCalls, 3600)(w, r)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())

	for i := 0; i < 3; i++ {
		token, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok_abc", token)
	}
	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestTokenSourceRefreshesNearExpiry(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Expires inside the refresh window, so every call re-fetches.
		tokenHandler(t, &tokenCalls, 60)(w, r)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())

	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), tokenCalls.Load())
}

func TestTokenSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())

	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestClientGetUser(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oidc/token":
			tokenHandler(t, &tokenCalls, 3600)(w, r)
		case "/api/users/user_123":
			assert.Equal(t, "Bearer tok_abc", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{
				"id": "user_123",
				"customData": map[string]any{
					"stripeCustomerId": "cus_123",
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())
	client := NewClient(srv.URL, ts, zerolog.Nop())

	user, err := client.GetUser(context.Background(), "user_123")
	require.NoError(t, err)
	assert.Equal(t, "user_123", user.ID)
	assert.Equal(t, "cus_123", user.CustomData["stripeCustomerId"])
}

func TestClientGetUserNotFound(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oidc/token" {
			tokenHandler(t, &tokenCalls, 3600)(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())
	client := NewClient(srv.URL, ts, zerolog.Nop())

	_, err := client.GetUser(context.Background(), "user_missing")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestClientPatchCustomData(t *testing.T) {
	var tokenCalls atomic.Int64
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oidc/token" {
			tokenHandler(t, &tokenCalls, 3600)(w, r)
			return
		}
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/users/user_123", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			CustomData map[string]any `json:"customData"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		patched = body.CustomData
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())
	client := NewClient(srv.URL, ts, zerolog.Nop())

	err := client.PatchCustomData(context.Background(), "user_123", map[string]any{
		"stripeCustomerId": "cus_123",
		"subscription": map[string]any{
			"id":     "sub_123",
			"status": "active",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", patched["stripeCustomerId"])
}

func TestClientInvalidatesTokenOnUnauthorized(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oidc/token" {
			tokenHandler(t, &tokenCalls, 3600)(w, r)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())
	client := NewClient(srv.URL, ts, zerolog.Nop())

	_, err := client.GetUser(context.Background(), "user_123")
	require.Error(t, err)

	// The cached token was dropped, so the next request re-authenticates.
	_, _ = client.GetUser(context.Background(), "user_123")
	assert.Equal(t, int64(2), tokenCalls.Load())
}

func TestTokenSourceRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "app_id", "app_secret", srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ts.Token(ctx)
	assert.Error(t, err)
}
