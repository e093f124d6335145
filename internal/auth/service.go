package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Access tokens live a week: the storefront is a long-lived browser session
// and there is no refresh flow.
const defaultAccessTTL = 168 * time.Hour

const roleClaim = "role"

type userStore interface {
	Create(ctx context.Context, u repo.User) (repo.User, error)
	GetByEmail(ctx context.Context, email string) (repo.User, error)
	Get(ctx context.Context, id pgtype.UUID) (repo.User, error)
}

// Service handles registration, login and token issuance.
type Service struct {
	users     userStore
	secret    []byte
	accessTTL time.Duration
	issuer    string
	audience  string
	clockSkew time.Duration
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	now       func() time.Time
}

// Config configures the auth service.
type Config struct {
	Users          userStore
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// Identity is the claim set extracted from a validated token.
type Identity struct {
	UserID string
	Role   string
}

// LoginResult bundles the issued token with the account it belongs to.
type LoginResult struct {
	User      repo.User
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("auth: user store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-butchery"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "butchery-storefront"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		users:     cfg.Users,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		now: time.Now,
	}, nil
}

// WithNow lets tests override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates an account and issues a token so the customer is signed
// in straight away.
func (s *Service) Register(ctx context.Context, name, email, password, phone string) (LoginResult, error) {
	if strings.TrimSpace(name) == "" {
		return LoginResult{}, common.NewAppError("VALIDATION_FAILED", "name is required", http.StatusBadRequest, nil)
	}
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" {
		return LoginResult{}, common.NewAppError("VALIDATION_FAILED", "email is required", http.StatusBadRequest, nil)
	}
	if len(password) < 8 {
		return LoginResult{}, common.NewAppError("VALIDATION_FAILED", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}

	if _, err := s.users.GetByEmail(ctx, normalizedEmail); err == nil {
		return LoginResult{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusBadRequest, nil)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return LoginResult{}, fmt.Errorf("hash password: %w", err)
	}

	user := repo.User{
		Email:        normalizedEmail,
		Name:         strings.TrimSpace(name),
		PasswordHash: repo.Text(hash),
	}
	if p := strings.TrimSpace(phone); p != "" {
		user.Phone = repo.Text(p)
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return LoginResult{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusBadRequest, err)
		}
		return LoginResult{}, fmt.Errorf("create user: %w", err)
	}

	return s.issue(created)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || password == "" {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	}

	user, err := s.users.GetByEmail(ctx, normalizedEmail)
	if err != nil {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	}
	if !user.PasswordHash.Valid || user.PasswordHash.String == "" {
		// OAuth-only account, no password to check.
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash.String)
	if err != nil || !ok {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	}

	return s.issue(user)
}

// Profile loads the account behind an authenticated request.
func (s *Service) Profile(ctx context.Context, userID string) (repo.User, error) {
	id, err := repo.ToUUID(strings.TrimSpace(userID))
	if err != nil {
		return repo.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return repo.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return user, nil
}

func (s *Service) issue(user repo.User) (LoginResult, error) {
	token, expiresAt, err := s.signAccessToken(repo.UUIDString(user.ID), user.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	return LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ParseAccessToken validates a token and returns the identity it carries.
func (s *Service) ParseAccessToken(token string) (Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Identity{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized,
			fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	// Parse verifies the signature only; temporal claims are checked below
	// against s.now so the clock can be injected.
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}

	identity := Identity{UserID: parsed.Subject()}
	if raw, ok := parsed.Get(roleClaim); ok {
		if role, ok := raw.(string); ok {
			identity.Role = role
		}
	}
	return identity, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(userID, role string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, role)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
