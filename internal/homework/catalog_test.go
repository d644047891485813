package homework

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRenderKnownCodes(t *testing.T) {
	c := DefaultCatalog()
	for _, code := range []string{StatusApproved, StatusReviewing, StatusRejected} {
		text, err := c.Render(code)
		require.NoError(t, err, code)
		assert.NotEmpty(t, text, code)

		again, err := c.Render(code)
		require.NoError(t, err)
		assert.Equal(t, text, again, "render must be deterministic")
	}
}

func TestCatalogRenderUnknownCode(t *testing.T) {
	c := DefaultCatalog()
	for _, code := range []string{"pending", "", "APPROVED"} {
		_, err := c.Render(code)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownStatus), code)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, code, se.Code)
	}
}

func TestCatalogCodesSorted(t *testing.T) {
	assert.Equal(t, []string{"approved", "rejected", "reviewing"}, DefaultCatalog().Codes())
}

func TestNewCatalogCopiesInput(t *testing.T) {
	m := map[string]string{"done": "Done.", "  ": "blank code", "empty": ""}
	c := NewCatalog(m)
	m["done"] = "changed"

	text, err := c.Render("done")
	require.NoError(t, err)
	assert.Equal(t, "Done.", text)
	assert.False(t, c.Known("empty"))
	assert.Equal(t, []string{"done"}, c.Codes())
}
