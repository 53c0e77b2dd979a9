package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(mw echo.MiddlewareFunc, authHeader string, h echo.HandlerFunc) (echo.Context, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return c, mw(h)(c)
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != status {
		t.Errorf("expected %d, got %d", status, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), header, okHandler)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "city_hospital",
		Roles:    []string{RoleNurse},
	}, testSigningKey)

	var gotUser string
	var gotRoles []string
	c, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token, func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "user-123" {
		t.Errorf("expected user-123, got %s", gotUser)
	}
	if len(gotRoles) != 1 || gotRoles[0] != RoleNurse {
		t.Errorf("unexpected roles: %v", gotRoles)
	}
	if c.Get("jwt_tenant_id") != "city_hospital" {
		t.Errorf("expected tenant city_hospital, got %v", c.Get("jwt_tenant_id"))
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSigningKey)

	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}, []byte("another-key-another-key-another-key"))
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerAndAudience(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "channeling", Audience: "channeling-api"}

	good, err := IssueToken(cfg, "user-1", "default", []string{RoleCashier}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := runMiddleware(JWTMiddleware(cfg), "Bearer "+good, okHandler); err != nil {
		t.Fatalf("expected issued token to verify, got %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	bad, _ := IssueToken(other, "user-1", "default", nil, time.Hour)
	_, err = runMiddleware(JWTMiddleware(cfg), "Bearer "+bad, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Skipper: func(echo.Context) bool { return true }}
	if _, err := runMiddleware(JWTMiddleware(cfg), "", okHandler); err != nil {
		t.Fatalf("expected skipped request to pass, got %v", err)
	}
}

func TestDevAuthMiddleware_NoHeader(t *testing.T) {
	var roles []string
	c, err := runMiddleware(DevAuthMiddleware(JWTConfig{}, "default"), "", func(c echo.Context) error {
		roles = RolesFromContext(c.Request().Context())
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin role, got %v", roles)
	}
	if c.Get("jwt_tenant_id") != "default" {
		t.Errorf("expected default tenant, got %v", c.Get("jwt_tenant_id"))
	}
}

func TestDevAuthMiddleware_VerifiesPresentedToken(t *testing.T) {
	_, err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}, "default"), "Bearer garbage", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if UserIDFromContext(req.Context()) != "" {
		t.Error("expected empty user id")
	}
	if RolesFromContext(req.Context()) != nil {
		t.Error("expected nil roles")
	}
}
