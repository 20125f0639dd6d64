package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/idempotency"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	// HeaderIdempotentReplay is set on responses served from a stored result.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	ctxIdempotencyKey = "idempotency_key"
)

// Idempotency validates X-Idempotency-Key on mutating requests and hands it to the handler.
// The key is claimed by the domain service inside the transaction of the operation.
func Idempotency() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > idempotency.MaxKeyLength {
			_ = c.Error(
				apperror.NewValidation("idempotency key too long").
					WithDetail("header", HeaderIdempotencyKey).
					WithDetail("max_length", idempotency.MaxKeyLength),
			)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Next()
	}
}

// IdempotencyKey returns the validated key of the request, or "".
func IdempotencyKey(c *gin.Context) string {
	return c.GetString(ctxIdempotencyKey)
}
