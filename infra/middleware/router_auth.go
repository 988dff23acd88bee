package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"query_router/pkg/apperr"
	"query_router/pkg/logger"
)

// JWTAuth validates HS256 bearer tokens and stores the subject as user_id.
// An empty secret disables authentication.
func JWTAuth(secret string) fiber.Handler {
	if secret == "" {
		logger.Warn("JWT_SECRET not configured, API authentication disabled")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			logger.WithError(err).Warn("JWT validation failed")
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.TokenExpired()
			}
			return apperr.InvalidToken("invalid token")
		}
		if !token.Valid {
			return apperr.InvalidToken("invalid token")
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return apperr.InvalidToken("missing subject in token")
		}

		c.Locals("user_id", sub)
		c.Locals("claims", claims)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.UserIDKey, sub))
		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SignToken issues an HS256 token; used by operators and tests.
func SignToken(secret, subject string, claims jwt.MapClaims) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = subject
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
