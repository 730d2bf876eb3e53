package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsContactDetails(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("org_id", "1"),
		attribute.String("contact_phone", "+1555"),
		attribute.String("contact_name", "Jane"),
		attribute.String("client_id", ""),
		attribute.Int("days_overdue", 12),
	)

	keys := make([]attribute.Key, 0, len(attrs))
	for _, attr := range attrs {
		keys = append(keys, attr.Key)
	}
	assert.Equal(t, []attribute.Key{"org_id", "days_overdue"}, keys)
}

func TestSafeErrorKeepsOnlyLeadingMessage(t *testing.T) {
	err := fmt.Errorf("ledger insert_promise: %w", errors.New("constraint failed on value 'Jane'"))
	assert.EqualError(t, SafeError(err), "ledger insert_promise")
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("plain")), "plain")
}
