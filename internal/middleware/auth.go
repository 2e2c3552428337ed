package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/pkg/auth"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/mindease/mindease-api/pkg/httputil"
)

const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextUserEmail = "user_email"
)

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the caller in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("missing or malformed authorization header"))
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}

		SetActor(c, claims)
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden("insufficient role"))
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func SetActor(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID())
	c.Set(ContextUserRole, model.Role(claims.Role))
	c.Set(ContextUserEmail, claims.Email)
}

func ActorFrom(c *gin.Context) (policy.Actor, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return policy.Actor{}, false
	}
	role, _ := c.Get(ContextUserRole)
	r, _ := role.(model.Role)
	return policy.Actor{ID: id, Role: r}, true
}

// Actor is ActorFrom for handlers mounted behind Authenticate.
func Actor(c *gin.Context) policy.Actor {
	actor, _ := ActorFrom(c)
	return actor
}
