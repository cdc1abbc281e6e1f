package models

import (
	"strings"

	dErrors "linkforge/pkg/domain-errors"
)

const maxHostnameLength = 253

// NormalizeHostname lowercases and strips the trailing dot so `Go.Acme.Com.`
// and `go.acme.com` resolve to the same record.
func NormalizeHostname(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".")
}

// ValidateHostname enforces RFC 1123 hostname syntax on an already-normalized
// name. Single-label names are rejected: a custom domain must live under some
// registrable parent (`go.acme.com`, not `localhost`).
//
// Errors: CodeInvalidHostname for every rejection; the message names the rule.
func ValidateHostname(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidHostname, "domain name cannot be empty")
	}
	if len(name) > maxHostnameLength {
		return dErrors.New(dErrors.CodeInvalidHostname, "domain name exceeds 253 characters")
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return dErrors.New(dErrors.CodeInvalidHostname, "domain name must contain at least two labels")
	}
	for _, label := range labels {
		if err := validateLabel(label); err != nil {
			return err
		}
	}
	return nil
}

func validateLabel(label string) error {
	if label == "" {
		return dErrors.New(dErrors.CodeInvalidHostname, "domain name contains an empty label")
	}
	if len(label) > 63 {
		return dErrors.New(dErrors.CodeInvalidHostname, "domain label exceeds 63 characters")
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return dErrors.New(dErrors.CodeInvalidHostname, "domain label cannot start or end with a hyphen")
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return dErrors.New(dErrors.CodeInvalidHostname, "domain name contains invalid characters")
		}
	}
	return nil
}
