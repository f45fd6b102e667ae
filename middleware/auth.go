package middleware

import (
	"strings"
	"time"

	"storefront-svc/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	// gin context keys set by the auth middleware
	CtxUserID = "userID"
	CtxRole   = "role"
	CtxEmail  = "email"
)

// Auth issues and checks bearer tokens. The signing secret is injected at
// construction rather than read from the environment inside handlers.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) GenerateToken(userID, email, name, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"name":    name,
		"role":    role,
		"exp":     time.Now().Add(7 * 24 * time.Hour).Unix(),
	})
	return token.SignedString(a.secret)
}

func (a *Auth) parse(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	return claims, ok
}

func (a *Auth) set(c *gin.Context, claims jwt.MapClaims) {
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	email, _ := claims["email"].(string)
	c.Set(CtxUserID, userID)
	c.Set(CtxRole, role)
	c.Set(CtxEmail, email)
}

// RequireCustomer gates customer-only routes. A wrong role answers 401, same
// as a missing token.
func (a *Auth) RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.parse(c)
		if !ok || claims["role"] != RoleCustomer {
			response.Unauthorized(c)
			c.Abort()
			return
		}
		a.set(c, claims)
		c.Next()
	}
}

// RequireAdmin gates admin routes: 401 without a token, 403 on wrong role.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.parse(c)
		if !ok {
			response.Unauthorized(c)
			c.Abort()
			return
		}
		if claims["role"] != RoleAdmin {
			response.Forbidden(c)
			c.Abort()
			return
		}
		a.set(c, claims)
		c.Next()
	}
}

// OptionalCustomer attaches identity when a valid customer token is present
// but lets anonymous requests through (guest checkout address creation).
func (a *Auth) OptionalCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := a.parse(c); ok && claims["role"] == RoleCustomer {
			a.set(c, claims)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id or "" when anonymous.
func UserID(c *gin.Context) string {
	id, _ := c.Get(CtxUserID)
	s, _ := id.(string)
	return s
}
