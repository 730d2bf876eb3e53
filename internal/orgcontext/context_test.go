package orgcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestOrgIDRoundTrip(t *testing.T) {
	ctx := WithOrgID(context.Background(), snowflake.ID(42))

	orgID, ok := OrgIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), orgID)
}

func TestOrgIDFromContextMissingOrZero(t *testing.T) {
	_, ok := OrgIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = OrgIDFromContext(WithOrgID(context.Background(), 0))
	assert.False(t, ok)
}

func TestParseOrgID(t *testing.T) {
	id, ok := ParseOrgID(" 1234 ")
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(1234), id)

	for _, raw := range []string{"", "abc", "-5", "0"} {
		_, ok := ParseOrgID(raw)
		assert.False(t, ok, raw)
	}
}
