package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/resilience"
)

func newOAuthFixture(t *testing.T, srv *httptest.Server) (*OAuth, *memUsers) {
	t.Helper()
	users := newMemUsers()
	svc := newTestService(t, users)
	client := &resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1, Timeout: 2 * time.Second}
	o := NewOAuth(svc, users, client,
		OAuthApp{ClientID: "google-id", ClientSecret: "google-secret"},
		OAuthApp{ClientID: "fb-id", ClientSecret: "fb-secret"},
		"https://shop.example/oauth/callback", zerolog.Nop())
	o.Endpoints = map[string]Endpoints{
		ProviderGoogle:   {TokenURL: srv.URL + "/google/token", UserInfoURL: srv.URL + "/google/userinfo"},
		ProviderFacebook: {TokenURL: srv.URL + "/facebook/token", UserInfoURL: srv.URL + "/facebook/me"},
	}
	return o, users
}

func TestGoogleExchangeCreatesUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/google/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "auth-code", r.Form.Get("code"))
		require.Equal(t, "google-id", r.Form.Get("client_id"))
		require.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		io.WriteString(w, `{"access_token":"upstream-token"}`)
	})
	mux.HandleFunc("/google/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer upstream-token", r.Header.Get("Authorization"))
		io.WriteString(w, `{"email":"jane@example.com","name":"Jane Doe","picture":"https://img.example/jane.png"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o, users := newOAuthFixture(t, srv)

	result, err := o.Exchange(context.Background(), "google", "auth-code")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, "jane@example.com", result.User.Email)
	require.Equal(t, "google", result.User.Provider)
	require.Equal(t, "https://img.example/jane.png", result.User.Picture.String)

	// Second exchange logs into the same account.
	again, err := o.Exchange(context.Background(), "google", "auth-code")
	require.NoError(t, err)
	require.Equal(t, result.User.ID, again.User.ID)
	require.Len(t, users.byEmail, 1)
}

func TestFacebookExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/facebook/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "fb-code", r.URL.Query().Get("code"))
		require.Equal(t, "fb-id", r.URL.Query().Get("client_id"))
		io.WriteString(w, `{"access_token":"fb-token"}`)
	})
	mux.HandleFunc("/facebook/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "fb-token", r.URL.Query().Get("access_token"))
		io.WriteString(w, `{"id":"42","name":"Jane Doe","email":"jane@example.com","picture":{"data":{"url":"https://img.example/fb.png"}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o, _ := newOAuthFixture(t, srv)

	result, err := o.Exchange(context.Background(), "facebook", "fb-code")
	require.NoError(t, err)
	require.Equal(t, "facebook", result.User.Provider)
	require.Equal(t, "https://img.example/fb.png", result.User.Picture.String)
}

func TestExchangeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad code", http.StatusBadRequest)
	}))
	defer srv.Close()

	o, _ := newOAuthFixture(t, srv)

	_, err := o.Exchange(context.Background(), "google", "bad-code")
	requireAppError(t, err, "UPSTREAM_FAILURE")
}

func TestExchangeValidation(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	o, _ := newOAuthFixture(t, srv)

	_, err := o.Exchange(context.Background(), "google", "")
	requireAppError(t, err, "VALIDATION_FAILED")

	_, err = o.Exchange(context.Background(), "myspace", "some-code")
	requireAppError(t, err, "VALIDATION_FAILED")
}

func TestExchangeMissingEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/google/token", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"access_token":"upstream-token"}`)
	})
	mux.HandleFunc("/google/userinfo", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"name":"No Email"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o, _ := newOAuthFixture(t, srv)

	_, err := o.Exchange(context.Background(), "google", "auth-code")
	requireAppError(t, err, "UPSTREAM_FAILURE")
}
