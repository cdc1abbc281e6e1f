package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseDomainID checks that parsing never panics on arbitrary input and
// never returns both a usable ID and an error.
func FuzzParseDomainID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE domains;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseDomainID(input)
		if err != nil {
			if !parsed.IsNil() {
				t.Errorf("error path returned non-nil id %s for input %q", parsed, input)
			}
			return
		}
		if parsed.IsNil() {
			t.Errorf("success path returned nil id for input %q", input)
		}
		// Reparsing the canonical form must succeed and agree.
		again, err := ParseDomainID(parsed.String())
		if err != nil || again != parsed {
			t.Errorf("canonical form %s did not round-trip", uuid.UUID(parsed))
		}
	})
}
