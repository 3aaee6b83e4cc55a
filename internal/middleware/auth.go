package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/tradeflow/pkg/jwtutil"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/prometheus"
	"go.uber.org/zap"
)

// RevocationChecker reports whether a token ID was logged out
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuthMiddleware validates the bearer token and stores the caller in the context
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)
			prometheus.RecordAuthAttempt()

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated", "code": "unauthorized"})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid authorization format, expected Bearer token", "code": "unauthorized"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Could not validate credentials", "code": "unauthorized"})
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					log.Error("Failed to check token revocation", zap.Error(err))
					prometheus.RecordAuthError("revocation_check")
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Authentication temporarily unavailable", "code": "unavailable"})
				}
				if isRevoked {
					log.Warn("Revoked token used", zap.String("user_id", claims.UserID))
					prometheus.RecordAuthError("revoked_token")
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Token has been revoked", "code": "unauthorized"})
				}
			}

			c.Set("user_id", claims.UserID)
			c.Set("email", claims.Email)
			c.Set("role", claims.Role)
			c.Set("claims", claims)

			log = log.With(zap.String("user_id", claims.UserID), zap.String("role", claims.Role))
			logger.Attach(c, log)
			prometheus.RecordAuthSuccess()

			return next(c)
		}
	}
}

// RequireRole rejects callers whose role is not one of roles
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			logger.FromContext(c).Warn("Role not permitted",
				zap.String("role", role),
				zap.Strings("allowed", roles))
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "Only " + strings.Join(roles, ", ") + " users can access this resource",
				"code":  "forbidden",
			})
		}
	}
}

// GetClaimsFromContext returns the validated token claims
func GetClaimsFromContext(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get("claims").(*jwtutil.UserClaims)
	return claims, ok
}
