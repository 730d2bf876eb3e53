package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	collectionsdomain "github.com/smallbiznis/collections/internal/collections/domain"
	obscontext "github.com/smallbiznis/collections/internal/observability/context"
	"github.com/smallbiznis/collections/internal/observability/logger"
	"github.com/smallbiznis/collections/internal/orgcontext"
	"go.uber.org/zap"
)

// OrgContext resolves the tenant from the X-Org-Id header.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := orgcontext.ParseOrgID(c.GetHeader(orgcontext.HeaderOrgID))
		if !ok {
			AbortWithError(c, collectionsdomain.ErrInvalidOrganization)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WriteRateLimit applies the per-tenant write budget. Limiter failures let
// the request through.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}
		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, collectionsdomain.ErrInvalidOrganization)
			return
		}

		res, err := s.writeLimiter.AllowWrite(c.Request.Context(), orgID)
		if err != nil {
			logger.WithContext(c.Request.Context(), s.log).Warn("write rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
