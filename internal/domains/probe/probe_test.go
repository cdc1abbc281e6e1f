package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	records  []string
	err      error
	lastName string
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	f.lastName = name
	return f.records, f.err
}

func newProbe(r resolver) *DNSProbe {
	return &DNSProbe{resolver: r, timeout: time.Second}
}

func TestCheckMatchesChallengeRecord(t *testing.T) {
	r := &fakeResolver{records: []string{"unrelated", "linkforge-verify-abc123"}}
	p := newProbe(r)

	result := p.Check(context.Background(), "links.example.com", "linkforge-verify-abc123")

	assert.Equal(t, Matched, result.Outcome)
	assert.Empty(t, result.Detail)
	assert.Equal(t, "_linkforge-challenge.links.example.com", r.lastName)
}

func TestCheckTrimsRecordWhitespace(t *testing.T) {
	p := newProbe(&fakeResolver{records: []string{"  linkforge-verify-abc123  "}})

	result := p.Check(context.Background(), "links.example.com", "linkforge-verify-abc123")

	assert.Equal(t, Matched, result.Outcome)
}

func TestCheckNoMatchingRecord(t *testing.T) {
	p := newProbe(&fakeResolver{records: []string{"some-other-value"}})

	result := p.Check(context.Background(), "links.example.com", "linkforge-verify-abc123")

	assert.Equal(t, NotMatched, result.Outcome)
	assert.NotEmpty(t, result.Detail)
}

func TestCheckLookupFailure(t *testing.T) {
	p := newProbe(&fakeResolver{err: errors.New("no such host")})

	result := p.Check(context.Background(), "links.example.com", "linkforge-verify-abc123")

	assert.Equal(t, ProbeError, result.Outcome)
	assert.Contains(t, result.Detail, "no such host")
}
