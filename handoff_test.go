package studenthub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	studenthub "github.com/Bhavani-Nayak/studenthub"
)

func TestParseHandoffURL(t *testing.T) {
	t.Run("query token is extracted and stripped", func(t *testing.T) {
		handoff, cleaned, ok := studenthub.ParseHandoffURL("/welcome?verify_token=abc123")
		assert.True(t, ok)
		assert.Equal(t, "abc123", handoff.Token)
		assert.Equal(t, "/welcome", cleaned)
	})

	t.Run("other query params survive the strip", func(t *testing.T) {
		handoff, cleaned, ok := studenthub.ParseHandoffURL("/welcome?tab=records&verify_token=abc123")
		assert.True(t, ok)
		assert.Equal(t, "abc123", handoff.Token)
		assert.Equal(t, "/welcome?tab=records", cleaned)
	})

	t.Run("fragment token wins over query", func(t *testing.T) {
		handoff, cleaned, ok := studenthub.ParseHandoffURL("/callback?verify_token=fromquery#verify_token=fromfragment")
		assert.True(t, ok)
		assert.Equal(t, "fromfragment", handoff.Token)
		assert.NotContains(t, cleaned, "fromfragment")
	})

	t.Run("fragment keeps its other pairs", func(t *testing.T) {
		handoff, cleaned, ok := studenthub.ParseHandoffURL("/callback#state=xyz&verify_token=abc123")
		assert.True(t, ok)
		assert.Equal(t, "abc123", handoff.Token)
		assert.Equal(t, "/callback#state=xyz", cleaned)
	})

	t.Run("no marker means no handoff", func(t *testing.T) {
		_, cleaned, ok := studenthub.ParseHandoffURL("/dashboard?tab=records")
		assert.False(t, ok)
		assert.Equal(t, "/dashboard?tab=records", cleaned)
	})

	t.Run("unparseable target is passed through", func(t *testing.T) {
		_, cleaned, ok := studenthub.ParseHandoffURL("://not a url")
		assert.False(t, ok)
		assert.Equal(t, "://not a url", cleaned)
	})
}
