package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDLocal = "user_id"

var errMissingToken = errors.New("missing bearer token")

// Authenticator verifies HS256 bearer tokens issued elsewhere. The caller
// identity is the token subject.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

func (a *Authenticator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := a.Verify(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return errorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing token", nil)
		}
		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// Verify parses an Authorization header value and returns the subject.
func (a *Authenticator) Verify(header string) (string, error) {
	tokenStr := strings.TrimSpace(header)
	if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
		tokenStr = strings.TrimSpace(tokenStr[7:])
	}
	if tokenStr == "" {
		return "", errMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !tok.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("sub missing in claims")
	}
	return claims.Subject, nil
}

// IssueToken signs a token for userID. The engine only verifies tokens;
// this serves tooling and tests.
func IssueToken(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}
