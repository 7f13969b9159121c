package sandbox

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const emailContextKey = "sandbox_email"

// Claims is the sandbox access-token payload.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// mintAccess issues a short-lived HS256 access token for the account.
func (s *Server) mintAccess(email string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "portal-sandbox",
		},
		Email: email,
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// bearerAuth guards the authenticated API surface. Invalid or expired
// tokens get a 401 with a JSON detail body, mirroring the production
// backend's failure shape.
func (s *Server) bearerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token expired."})
		}

		c.Set(emailContextKey, claims.Email)
		return next(c)
	}
}

func requestEmail(c echo.Context) string {
	email, _ := c.Get(emailContextKey).(string)
	return email
}
