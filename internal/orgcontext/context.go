package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// HeaderOrgID carries the tenant identifier on inbound requests.
const HeaderOrgID = "X-Org-Id"

type orgContextKey struct{}

// WithOrgID stores the tenant in the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgContextKey{}, orgID)
}

// OrgIDFromContext returns the tenant from context. Zero is never a valid tenant.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	orgID, ok := ctx.Value(orgContextKey{}).(snowflake.ID)
	if !ok || orgID == 0 {
		return 0, false
	}
	return orgID, true
}

// ParseOrgID parses a tenant identifier from its decimal string form.
func ParseOrgID(raw string) (snowflake.ID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}
