package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwnerType(t *testing.T) {
	for _, raw := range []string{"USER", "user", "User"} {
		parsed, err := ParseOwnerType(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, OwnerTypeUser, parsed)
	}

	parsed, err := ParseOwnerType("team")
	require.NoError(t, err)
	assert.Equal(t, OwnerTypeTeam, parsed)

	_, err = ParseOwnerType("")
	require.Error(t, err)
	_, err = ParseOwnerType("ORG")
	require.Error(t, err)
}

func TestOwnerValidate(t *testing.T) {
	owner := Owner{ID: NewOwnerID(), Type: OwnerTypeTeam}
	require.NoError(t, owner.Validate())
	assert.False(t, owner.IsZero())

	assert.Error(t, Owner{Type: OwnerTypeUser}.Validate(), "missing id")
	assert.Error(t, Owner{ID: NewOwnerID()}.Validate(), "missing type")
	assert.True(t, Owner{}.IsZero())
}
