package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/pkg/logger"
)

// TenantHeader is the HTTP header for tenant identification.
const TenantHeader = "X-Tenant-ID"

// Tenant resolves the X-Tenant-ID header against the registry and stores the
// tenant in the request context. It must run before Auth.
func Tenant(registry tenant.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			_ = c.Error(apperror.NewValidation("tenant is required").WithDetail("header", TenantHeader))
			c.Abort()
			return
		}
		tenantID, err := id.Parse(raw)
		if err != nil {
			_ = c.Error(
				apperror.NewValidation("invalid tenant id").
					WithDetail("header", TenantHeader).
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}

		t, err := tenant.Resolve(ctx, registry, tenantID)
		if err != nil {
			switch {
			case errors.Is(err, tenant.ErrTenantNotFound):
				_ = c.Error(apperror.NewNotFound("tenant", tenantID))
			case errors.Is(err, tenant.ErrTenantNotActive):
				_ = c.Error(apperror.NewForbidden("tenant is not active").WithDetail("tenant_id", tenantID.String()))
			default:
				logger.Warn(ctx, "tenant lookup failed", "tenant_id", tenantID, "error", err)
				_ = c.Error(apperror.NewInternal(err).WithDetail("tenant_id", tenantID.String()))
			}
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(tenant.WithTenant(ctx, t))
		c.Set("tenant_id", t.ID.String())
		c.Next()
	}
}
