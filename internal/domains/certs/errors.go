package certs

import (
	"strings"

	dErrors "linkforge/pkg/domain-errors"
)

// transientPatterns match CA and network failures worth retrying. Anything
// else is treated as permanent: the domain is misconfigured or rejected and
// retrying without owner action cannot succeed.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"network is unreachable",
	"no such host",
	"timeout",
	"deadline exceeded",
	"rate limit",
	"429",
	"503",
	"temporary failure",
}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return dErrors.Wrap(err, dErrors.CodeCertificateTransient, "certificate authority unavailable")
		}
	}
	return dErrors.Wrap(err, dErrors.CodeCertificatePermanent, "certificate issuance rejected")
}

// IsTransient reports whether a provisioning failure should be retried.
func IsTransient(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeCertificateTransient)
}
