// Package metrics provides observability for the domain lifecycle engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks lifecycle transitions, probe outcomes, certificate issuance
// and scheduler scan behavior.
type Metrics struct {
	DomainsReserved        prometheus.Counter
	DomainsVerified        prometheus.Counter
	VerificationFailures   prometheus.Counter
	VerificationsExhausted prometheus.Counter
	ReservationsExpired    prometheus.Counter
	CertificatesIssued     prometheus.Counter
	CertificateFailures    *prometheus.CounterVec
	DomainsBlacklisted     prometheus.Counter
	DomainsDeleted         prometheus.Counter
	VersionConflicts       prometheus.Counter
	RiskClassifications    *prometheus.CounterVec

	ProbeDuration     prometheus.Histogram
	ProvisionDuration prometheus.Histogram
	ScanDuration      *prometheus.HistogramVec
	ScanBatchSize     *prometheus.HistogramVec
}

// New creates a Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		DomainsReserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domains_reserved_total",
			Help: "Total number of domain reservations created",
		}),
		DomainsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domains_verified_total",
			Help: "Total number of successful domain verifications",
		}),
		VerificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domain_verification_failures_total",
			Help: "Total number of failed verification probes",
		}),
		VerificationsExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domain_verifications_exhausted_total",
			Help: "Total number of domains that exhausted their verification attempts",
		}),
		ReservationsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domain_reservations_expired_total",
			Help: "Total number of reservations reclaimed after their window passed",
		}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_certificates_issued_total",
			Help: "Total number of certificates issued or renewed",
		}),
		CertificateFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkforge_certificate_failures_total",
			Help: "Total number of certificate provisioning failures by kind",
		}, []string{"kind"}),
		DomainsBlacklisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domains_blacklisted_total",
			Help: "Total number of admin blacklist actions",
		}),
		DomainsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domains_deleted_total",
			Help: "Total number of domain deletions",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkforge_domain_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on domain writes",
		}),
		RiskClassifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkforge_domain_risk_classifications_total",
			Help: "Total number of rescore results by classification",
		}, []string{"classification"}),
		ProbeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkforge_verification_probe_duration_seconds",
			Help:    "Duration of DNS verification probes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ProvisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkforge_certificate_provision_duration_seconds",
			Help:    "Duration of certificate issuance attempts",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ScanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkforge_scheduler_scan_duration_seconds",
			Help:    "Duration of one reconciliation scan by kind",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"scan"}),
		ScanBatchSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkforge_scheduler_scan_batch_size",
			Help:    "Number of domains matched by one reconciliation scan",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"scan"}),
	}
}

// ObserveProbe records the duration of a verification probe.
// Call with time.Now() at the start of the probe.
func (m *Metrics) ObserveProbe(start time.Time) {
	m.ProbeDuration.Observe(time.Since(start).Seconds())
}

// ObserveProvision records the duration of a certificate issuance attempt.
func (m *Metrics) ObserveProvision(start time.Time) {
	m.ProvisionDuration.Observe(time.Since(start).Seconds())
}

// ObserveScan records one scheduler scan's duration and batch size.
func (m *Metrics) ObserveScan(scan string, start time.Time, matched int) {
	m.ScanDuration.WithLabelValues(scan).Observe(time.Since(start).Seconds())
	m.ScanBatchSize.WithLabelValues(scan).Observe(float64(matched))
}
