package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*auth.Identity, error)
}

const ctxActor = "actor"

// Auth validates the bearer token and stores the caller as an actor.Actor.
// The token tenant must equal the tenant resolved by Tenant.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		ident, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		t := tenant.GetTenant(c.Request.Context())
		if t == nil {
			abortUnauthorized(c, "tenant is required")
			return
		}
		if t.ID != ident.TenantID {
			_ = c.Error(
				apperror.NewForbidden("tenant mismatch").
					WithDetail("header_tenant_id", t.ID.String()).
					WithDetail("token_tenant_id", ident.TenantID.String()),
			)
			c.Abort()
			return
		}

		a := actor.New(t.ID, ident.UserID)
		c.Request = c.Request.WithContext(actor.WithActor(c.Request.Context(), a))
		c.Set(ctxActor, a)
		c.Set("user_id", ident.UserID)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Auth.
func ActorFrom(c *gin.Context) (actor.Actor, bool) {
	v, ok := c.Get(ctxActor)
	if !ok {
		return actor.Actor{}, false
	}
	a, ok := v.(actor.Actor)
	return a, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
