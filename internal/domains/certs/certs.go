// Package certs provisions TLS certificates for verified domains.
package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"time"

	"golang.org/x/crypto/acme/autocert"

	dErrors "linkforge/pkg/domain-errors"
)

// Certificate describes an issued certificate. The private material stays in
// the provisioner's cache; the lifecycle engine only tracks metadata.
type Certificate struct {
	Provider  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provisioner requests or renews a certificate for one domain. Stateless per
// call. Failures carry CodeCertificateTransient (CA rate limit, network) or
// CodeCertificatePermanent (domain misconfigured, rejected).
type Provisioner interface {
	Provision(ctx context.Context, domainName string) (Certificate, error)
}

// Config holds the ACME account settings.
type Config struct {
	// Email is the contact address for the CA account.
	Email string
	// CacheDir stores issued certificates and the account key.
	CacheDir string
	// Timeout bounds a single issuance attempt.
	Timeout time.Duration
}

// ACMEProvisioner issues certificates through an autocert manager.
type ACMEProvisioner struct {
	manager *autocert.Manager
	timeout time.Duration
}

const acmeProviderName = "letsencrypt"

// NewACME constructs a provisioner backed by the configured CA account.
func NewACME(cfg Config) (*ACMEProvisioner, error) {
	if cfg.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "acme contact email is required")
	}
	if cfg.CacheDir == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "acme cache directory is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ACMEProvisioner{
		manager: &autocert.Manager{
			Cache:  autocert.DirCache(cfg.CacheDir),
			Prompt: autocert.AcceptTOS,
			Email:  cfg.Email,
			// Issuance is explicit and gated on domain verification
			// upstream, so every requested host is allowed here.
			HostPolicy: func(context.Context, string) error { return nil },
		},
		timeout: timeout,
	}, nil
}

func (p *ACMEProvisioner) Provision(ctx context.Context, domainName string) (Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// autocert exposes issuance through the TLS handshake callback, which
	// does not take a context. Run it in a goroutine and abandon the
	// attempt on timeout; the scheduler retries transient failures.
	type outcome struct {
		cert *tls.Certificate
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		cert, err := p.manager.GetCertificate(&tls.ClientHelloInfo{ServerName: domainName})
		done <- outcome{cert: cert, err: err}
	}()

	var cert *tls.Certificate
	select {
	case <-ctx.Done():
		return Certificate{}, dErrors.Wrap(ctx.Err(), dErrors.CodeCertificateTransient, "certificate issuance timed out")
	case out := <-done:
		if out.err != nil {
			return Certificate{}, classify(out.err)
		}
		cert = out.cert
	}

	leaf := cert.Leaf
	var err error
	if leaf == nil && len(cert.Certificate) > 0 {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return Certificate{}, dErrors.Wrap(err, dErrors.CodeCertificatePermanent, "parse issued certificate")
		}
	}
	if leaf == nil {
		return Certificate{}, dErrors.New(dErrors.CodeCertificatePermanent, "issued certificate has no leaf")
	}
	return Certificate{
		Provider:  acmeProviderName,
		IssuedAt:  leaf.NotBefore,
		ExpiresAt: leaf.NotAfter,
	}, nil
}
