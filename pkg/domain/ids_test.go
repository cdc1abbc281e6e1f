package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "linkforge/pkg/domain-errors"
)

func TestParseDomainID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDomainID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed UUID", func(t *testing.T) {
		_, err := ParseDomainID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects the nil UUID", func(t *testing.T) {
		_, err := ParseDomainID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips a valid UUID", func(t *testing.T) {
		raw := uuid.New().String()
		parsed, err := ParseDomainID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, parsed.String())
		assert.False(t, parsed.IsNil())
	})

	t.Run("accepts uppercase hex", func(t *testing.T) {
		raw := strings.ToUpper(uuid.New().String())
		parsed, err := ParseDomainID(raw)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(raw), parsed.String())
	})
}

func TestParseOwnerID(t *testing.T) {
	_, err := ParseOwnerID("")
	require.Error(t, err)

	raw := uuid.New().String()
	parsed, err := ParseOwnerID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, parsed.String())
}

func TestNewIDsAreDistinct(t *testing.T) {
	assert.NotEqual(t, NewDomainID(), NewDomainID())
	assert.NotEqual(t, NewOwnerID(), NewOwnerID())
}
