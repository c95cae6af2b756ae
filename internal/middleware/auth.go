package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/config"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/qrdesk/qrstudio/internal/pkg/quota"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	CtxOwnerID = "owner_id"
	CtxPlan    = "plan"

	// planClaim is the custom ID-token claim carrying the billing plan.
	planClaim = "plan"
)

// TokenVerifier is satisfied by *auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// OwnerAuth authenticates the caller and sets the owner id and plan in the context.
// With a nil verifier every request acts as cfg.DevOwnerID, and the plan may be
// chosen with the configured plan header.
// It also sets the owner_id attribute on the current span for telemetry filtering.
func OwnerAuth(cfg config.AuthCfg, verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var owner string
		var plan quota.Plan

		if verifier == nil {
			if cfg.DevOwnerID == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
				return
			}
			owner = cfg.DevOwnerID
			plan = quota.Plan(cfg.DevPlan)
			if h := strings.TrimSpace(c.GetHeader(cfg.PlanHeader)); cfg.PlanHeader != "" && h != "" {
				plan = quota.Plan(h)
			}
		} else {
			raw := extractToken(c)
			if raw == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("missing authorization token"))
				return
			}
			tok, err := verifier.VerifyIDToken(c.Request.Context(), raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("invalid token"))
				return
			}
			owner = tok.UID
			plan = quota.PlanLifetimeOne
			if p, ok := tok.Claims[planClaim].(string); ok && p != "" {
				plan = quota.Plan(p)
			}
		}

		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			span.SetAttributes(attribute.String("owner_id", owner))
		}

		c.Set(CtxOwnerID, owner)
		c.Set(CtxPlan, plan)
		c.Next()
	}
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearer := c.GetHeader("Authorization")
	if len(bearer) > 7 && strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimSpace(bearer[7:])
	}
	return ""
}
