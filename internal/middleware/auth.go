package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"
	userIDKey = "user_id"
)

// clockSkew tolerates small clock drift between field tablets and the API.
const clockSkew = 30 * time.Second

// JWTClaims are the custom claims carried by every staff access token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token, then stores the claims and the parsed
// user id on the context.
func JWTAuth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	key := []byte(secret)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthenticated", "Authentication required"))
			return
		}

		claims := &JWTClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("invalid_token", "Invalid or expired token"))
			return
		}
		uid, err := uuid.Parse(claims.UserID)
		if err != nil || !knownRole(claims.Role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("invalid_token", "Invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func knownRole(role string) bool {
	switch role {
	case model.RoleCollector, model.RoleSupervisor, model.RoleAdmin:
		return true
	}
	return false
}

// RequireRole rejects requests whose token role is not in roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthenticated", "Authentication required"))
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.WithCode("forbidden_role", "Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}

// CurrentUserID returns the authenticated staff member's id.
func CurrentUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(userIDKey)
	uid, _ := id.(uuid.UUID)
	return uid
}

// ForeignToCollector reports whether the caller is a collector looking at a
// resource owned by another collector. Supervisors and admins see everything.
func ForeignToCollector(c *gin.Context, owner uuid.UUID) bool {
	claims := GetClaims(c)
	return claims != nil && claims.Role == model.RoleCollector && owner != CurrentUserID(c)
}
