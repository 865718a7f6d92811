package middleware

import (
	"net/http"
	"strings"

	"equiplend/internal/domain"
	"equiplend/internal/pkg/jwt"
	"equiplend/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxUserName  = "user_name"
	ctxUserEmail = "user_email"
)

// JWTAuth validates the bearer token and stores the caller in the gin
// context.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			return
		}
		authenticate(c, jwtService, token)
	}
}

// JWTAuthQuery is JWTAuth for websocket upgrades: browsers cannot set headers
// on them, so a ?token= query parameter is accepted when the header is absent.
// Mount it on websocket routes only.
func JWTAuthQuery(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header or token parameter is required")
			return
		}
		authenticate(c, jwtService, token)
	}
}

// bearerToken returns the token from the Authorization header, or "" when
// the header is absent. A malformed header aborts the request.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be: Bearer <token>")
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func authenticate(c *gin.Context, jwtService *jwt.Service, token string) {
	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	role := domain.UserRole(claims.Role)
	if role != domain.RoleUser && role != domain.RoleAdmin {
		response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Unknown role in token")
		return
	}

	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxRole, string(role))
	c.Set(ctxUserName, claims.Name)
	c.Set(ctxUserEmail, claims.Email)
	c.Next()
}

// Principal returns the caller stored by JWTAuth.
func Principal(c *gin.Context) (domain.Principal, bool) {
	userID := c.GetInt64(ctxUserID)
	if userID <= 0 {
		return domain.Principal{}, false
	}
	return domain.Principal{
		UserID: userID,
		Role:   domain.UserRole(c.GetString(ctxRole)),
		Name:   c.GetString(ctxUserName),
		Email:  c.GetString(ctxUserEmail),
	}, true
}
