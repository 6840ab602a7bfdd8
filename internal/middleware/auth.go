package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ContextUserID = "userId"
	ContextRole   = "role"
)

// Claims is what an access token carries about its holder.
type Claims struct {
	UserID primitive.ObjectID
	Role   string
}

// ParseBearer validates an "Authorization: Bearer <jwt>" header value signed
// with secret and returns its userId and role claims.
func ParseBearer(header, secret string) (Claims, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return Claims{}, errors.New("missing token")
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Claims{}, errors.New("invalid token format")
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, errors.Wrap(err, "invalid token")
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid token claims")
	}

	userIDValue, ok := claims["userId"].(string)
	if !ok || strings.TrimSpace(userIDValue) == "" {
		return Claims{}, errors.New("userId claim missing")
	}
	userID, err := primitive.ObjectIDFromHex(userIDValue)
	if err != nil {
		return Claims{}, errors.Wrap(err, "invalid userId claim")
	}

	role, _ := claims["role"].(string)
	return Claims{UserID: userID, Role: role}, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}

// AuthGuard validates the bearer token and injects userId and role into the
// context. With allowedRoles it also rejects callers outside those roles.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.TrimSpace(header) == "" {
			log.Println("[AUTH] [ERROR] missing token")
			unauthorized(c, "Not authorized, no token")
			return
		}

		claims, err := ParseBearer(header, secret)
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			unauthorized(c, "Not authorized, token failed")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		if len(allowedRoles) > 0 && !roleAllowed(claims.Role, allowedRoles) {
			forbidRole(c, claims.Role)
			return
		}
		c.Next()
	}
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, "admin")
}
