package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "linkforge/pkg/domain-errors"
)

func TestNormalizeHostname(t *testing.T) {
	assert.Equal(t, "go.acme.com", NormalizeHostname("  Go.ACME.com. "))
	assert.Equal(t, "go.acme.com", NormalizeHostname("go.acme.com"))
}

func TestValidateHostname(t *testing.T) {
	valid := []string{
		"go.acme.com",
		"a.b",
		"xn--bcher-kva.example",
		"sub-domain.my-brand.io",
		"123.acme.com",
	}
	for _, name := range valid {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateHostname(name))
		})
	}

	invalid := map[string]string{
		"empty":                "",
		"single label":         "localhost",
		"underscore":           "my_app.acme.com",
		"space":                "go acme.com",
		"leading hyphen":       "-go.acme.com",
		"trailing hyphen":      "go-.acme.com",
		"empty label":          "go..acme.com",
		"uppercase not normal": "GO.ACME.COM",
		"overlong label":       strings.Repeat("a", 64) + ".com",
		"overlong name":        strings.Repeat("a.", 150) + "com",
	}
	for label, name := range invalid {
		t.Run(label, func(t *testing.T) {
			err := ValidateHostname(name)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidHostname))
		})
	}
}
