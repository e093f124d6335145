package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
	"github.com/gbdelivering/backend-butchery/internal/resilience"
)

const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// Endpoints locates a provider's token and profile APIs. Overridable so
// tests can point at a local server.
type Endpoints struct {
	TokenURL    string
	UserInfoURL string
}

// OAuthApp holds one provider's client credentials.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
}

// OAuth exchanges authorization codes for local accounts. An unknown email
// gets a fresh user row; a known one logs into the existing account.
type OAuth struct {
	Service     *Service
	Users       userStore
	Client      *resilience.HTTPClient
	Google      OAuthApp
	Facebook    OAuthApp
	RedirectURL string
	Endpoints   map[string]Endpoints
	Logger      zerolog.Logger
}

// NewOAuth constructs the exchanger with production provider endpoints.
func NewOAuth(service *Service, users userStore, client *resilience.HTTPClient, google, facebook OAuthApp, redirectURL string, logger zerolog.Logger) *OAuth {
	return &OAuth{
		Service:     service,
		Users:       users,
		Client:      client,
		Google:      google,
		Facebook:    facebook,
		RedirectURL: redirectURL,
		Endpoints: map[string]Endpoints{
			ProviderGoogle: {
				TokenURL:    "https://oauth2.googleapis.com/token",
				UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			},
			ProviderFacebook: {
				TokenURL:    "https://graph.facebook.com/v18.0/oauth/access_token",
				UserInfoURL: "https://graph.facebook.com/me",
			},
		},
		Logger: logger,
	}
}

type oauthProfile struct {
	Email   string
	Name    string
	Picture string
}

// Exchange trades an authorization code for a signed-in local session.
func (o *OAuth) Exchange(ctx context.Context, provider, code string) (LoginResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if code == "" {
		return LoginResult{}, common.NewAppError("VALIDATION_FAILED", "code is required", http.StatusBadRequest, nil)
	}

	var profile oauthProfile
	var err error
	switch provider {
	case ProviderGoogle:
		profile, err = o.googleProfile(ctx, code)
	case ProviderFacebook:
		profile, err = o.facebookProfile(ctx, code)
	default:
		return LoginResult{}, common.NewAppError("VALIDATION_FAILED", "unknown provider", http.StatusBadRequest, nil)
	}
	if err != nil {
		o.Logger.Warn().Err(err).Str("provider", provider).Msg("oauth exchange failed")
		return LoginResult{}, common.NewAppError("UPSTREAM_FAILURE", "identity provider rejected the exchange", http.StatusBadGateway, err)
	}
	if profile.Email == "" {
		return LoginResult{}, common.NewAppError("UPSTREAM_FAILURE", "identity provider returned no email", http.StatusBadGateway, nil)
	}

	user, err := o.findOrCreate(ctx, provider, profile)
	if err != nil {
		return LoginResult{}, err
	}
	return o.Service.issue(user)
}

func (o *OAuth) findOrCreate(ctx context.Context, provider string, profile oauthProfile) (repo.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	user, err := o.Users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.User{}, fmt.Errorf("lookup oauth user: %w", err)
	}

	created := repo.User{
		Email:    email,
		Name:     profile.Name,
		Provider: provider,
	}
	if profile.Picture != "" {
		created.Picture = repo.Text(profile.Picture)
	}
	user, err = o.Users.Create(ctx, created)
	if err != nil {
		return repo.User{}, fmt.Errorf("create oauth user: %w", err)
	}
	return user, nil
}

func (o *OAuth) googleProfile(ctx context.Context, code string) (oauthProfile, error) {
	endpoints := o.Endpoints[ProviderGoogle]

	form := url.Values{
		"code":          {code},
		"client_id":     {o.Google.ClientID},
		"client_secret": {o.Google.ClientSecret},
		"redirect_uri":  {o.RedirectURL},
		"grant_type":    {"authorization_code"},
	}
	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := o.postForm(ctx, endpoints.TokenURL, form, &tokenResp); err != nil {
		return oauthProfile{}, err
	}
	if tokenResp.AccessToken == "" {
		return oauthProfile{}, fmt.Errorf("google token exchange returned no access token")
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := o.getJSON(ctx, endpoints.UserInfoURL, tokenResp.AccessToken, &info); err != nil {
		return oauthProfile{}, err
	}
	return oauthProfile{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

func (o *OAuth) facebookProfile(ctx context.Context, code string) (oauthProfile, error) {
	endpoints := o.Endpoints[ProviderFacebook]

	tokenURL := endpoints.TokenURL + "?" + url.Values{
		"code":          {code},
		"client_id":     {o.Facebook.ClientID},
		"client_secret": {o.Facebook.ClientSecret},
		"redirect_uri":  {o.RedirectURL},
	}.Encode()
	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := o.getJSON(ctx, tokenURL, "", &tokenResp); err != nil {
		return oauthProfile{}, err
	}
	if tokenResp.AccessToken == "" {
		return oauthProfile{}, fmt.Errorf("facebook token exchange returned no access token")
	}

	infoURL := endpoints.UserInfoURL + "?" + url.Values{
		"fields":       {"id,name,email,picture.type(large)"},
		"access_token": {tokenResp.AccessToken},
	}.Encode()
	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := o.getJSON(ctx, infoURL, "", &info); err != nil {
		return oauthProfile{}, err
	}
	return oauthProfile{Email: info.Email, Name: info.Name, Picture: info.Picture.Data.URL}, nil
}

func (o *OAuth) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return o.send(ctx, req, out)
}

func (o *OAuth) getJSON(ctx context.Context, rawURL, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return o.send(ctx, req, out)
}

func (o *OAuth) send(ctx context.Context, req *http.Request, out any) error {
	resp, err := o.Client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("identity provider returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
