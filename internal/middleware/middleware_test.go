package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/tradeflow/pkg/config"
	"github.com/suteetoe/tradeflow/pkg/jwtutil"
	"github.com/suteetoe/tradeflow/pkg/tokenstore"
)

func newJWT() *jwtutil.JWTUtil {
	return jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1, Issuer: "tradeflow"})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type failingChecker struct{}

func (failingChecker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func newAuthEcho(jwt *jwtutil.JWTUtil, checker RevocationChecker) *echo.Echo {
	e := echo.New()
	e.Use(RequestIDMiddleware)
	g := e.Group("/api", JWTAuthMiddleware(jwt, checker))
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id"), "role": c.Get("role")})
	})
	g.GET("/suppliers-only", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, RequireRole("supplier"))
	return e
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(RequestIDMiddleware)
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("request_id").(string))
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = serve(e, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestJWTAuthMiddleware(t *testing.T) {
	jwt := newJWT()
	blacklist := tokenstore.NewMemoryBlacklist()
	e := newAuthEcho(jwt, blacklist)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	token, err := jwt.GenerateToken("a@example.com", "user-1", "buyer")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"user-1","role":"buyer"}`, rec.Body.String())

	claims, err := jwt.ValidateToken(token)
	require.NoError(t, err)
	require.NoError(t, blacklist.Revoke(context.Background(), claims.ID, jwt.TTL()))
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
}

func TestJWTAuthMiddlewareRevocationFailure(t *testing.T) {
	jwt := newJWT()
	e := newAuthEcho(jwt, failingChecker{})

	token, err := jwt.GenerateToken("a@example.com", "user-1", "buyer")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, req).Code)
}

func TestRequireRole(t *testing.T) {
	jwt := newJWT()
	e := newAuthEcho(jwt, nil)

	buyerToken, err := jwt.GenerateToken("b@example.com", "buyer-1", "buyer")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/suppliers-only", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+buyerToken)
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	supplierToken, err := jwt.GenerateToken("s@example.com", "supplier-1", "supplier")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/suppliers-only", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+supplierToken)
	assert.Equal(t, http.StatusNoContent, serve(e, req).Code)
}
