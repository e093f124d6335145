package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type memUsers struct {
	byEmail map[string]repo.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]repo.User{}}
}

func (m *memUsers) Create(_ context.Context, u repo.User) (repo.User, error) {
	if !u.ID.Valid {
		u.ID = repo.NewUUID()
	}
	if u.Role == "" {
		u.Role = "customer"
	}
	if u.Provider == "" {
		u.Provider = "local"
	}
	m.byEmail[u.Email] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (repo.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Get(_ context.Context, id pgtype.UUID) (repo.User, error) {
	for _, u := range m.byEmail {
		if repo.UUIDEqual(u.ID, id) {
			return u, nil
		}
	}
	return repo.User{}, repo.ErrNotFound
}

func newTestService(t *testing.T, users userStore) *Service {
	t.Helper()
	svc, err := NewService(Config{Users: users, Secret: "test-secret-test-secret"})
	require.NoError(t, err)
	return svc
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	users := newMemUsers()
	svc := newTestService(t, users)

	result, err := svc.Register(context.Background(), "Jane Doe", "Jane@Example.com", "correct-horse", "0788123456")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, "jane@example.com", result.User.Email)
	require.Equal(t, "customer", result.User.Role)

	identity, err := svc.ParseAccessToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, repo.UUIDString(result.User.ID), identity.UserID)
	require.Equal(t, "customer", identity.Role)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newMemUsers())

	_, err := svc.Register(context.Background(), "", "jane@example.com", "correct-horse", "")
	requireAppError(t, err, "VALIDATION_FAILED")

	_, err = svc.Register(context.Background(), "Jane", "jane@example.com", "short", "")
	requireAppError(t, err, "VALIDATION_FAILED")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMemUsers()
	svc := newTestService(t, users)

	_, err := svc.Register(context.Background(), "Jane", "jane@example.com", "correct-horse", "")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Other Jane", "JANE@example.com", "different-horse", "")
	requireAppError(t, err, "EMAIL_ALREADY_USED")
}

func TestLogin(t *testing.T) {
	users := newMemUsers()
	svc := newTestService(t, users)

	_, err := svc.Register(context.Background(), "Jane", "jane@example.com", "correct-horse", "")
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "jane@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	_, err = svc.Login(context.Background(), "jane@example.com", "wrong-horse")
	requireAppError(t, err, "INVALID_CREDENTIALS")

	_, err = svc.Login(context.Background(), "nobody@example.com", "correct-horse")
	requireAppError(t, err, "INVALID_CREDENTIALS")
}

func TestLoginRejectsOAuthOnlyAccount(t *testing.T) {
	users := newMemUsers()
	svc := newTestService(t, users)

	_, err := users.Create(context.Background(), repo.User{Email: "social@example.com", Name: "Social", Provider: "google"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "social@example.com", "anything-at-all")
	requireAppError(t, err, "INVALID_CREDENTIALS")
}

func TestTokenExpiry(t *testing.T) {
	users := newMemUsers()
	svc := newTestService(t, users)

	issuedAt := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issuedAt })

	result, err := svc.Register(context.Background(), "Jane", "jane@example.com", "correct-horse", "")
	require.NoError(t, err)
	require.Equal(t, issuedAt.Add(168*time.Hour), result.ExpiresAt)

	svc.WithNow(func() time.Time { return issuedAt.Add(167 * time.Hour) })
	_, err = svc.ParseAccessToken(result.Token)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return issuedAt.Add(169 * time.Hour) })
	_, err = svc.ParseAccessToken(result.Token)
	requireAppError(t, err, "UNAUTHORIZED")
}

func TestParseAccessTokenGarbage(t *testing.T) {
	svc := newTestService(t, newMemUsers())

	_, err := svc.ParseAccessToken("")
	requireAppError(t, err, "UNAUTHORIZED")

	_, err = svc.ParseAccessToken("not.a.token")
	requireAppError(t, err, "UNAUTHORIZED")
}

func TestRequireRole(t *testing.T) {
	users := newMemUsers()
	svc := newTestService(t, users)

	admin, err := users.Create(context.Background(), repo.User{Email: "admin@example.com", Name: "Admin", Role: "admin"})
	require.NoError(t, err)
	adminSession, err := svc.issue(admin)
	require.NoError(t, err)

	customerSession, err := svc.Register(context.Background(), "Jane", "jane@example.com", "correct-horse", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	handler := mw.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"admin allowed", adminSession.Token, http.StatusNoContent},
		{"customer forbidden", customerSession.Token, http.StatusForbidden},
		{"anonymous rejected", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
