package domain

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"linkforge/internal/domains/models"
	id "linkforge/pkg/domain"
	"linkforge/pkg/platform/sentinel"
	platformtx "linkforge/pkg/platform/tx"
	"linkforge/pkg/requestcontext"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the PostgreSQL error code for unique index violations.
const uniqueViolation = "23505"

const domainColumns = `id, domain_name, owner_id, owner_type, status,
	verification_token, verification_attempts, last_verification_attempt,
	verification_error, next_reconfirmation_due, reserved_until,
	ssl_status, ssl_provider, ssl_issued_at, ssl_expires_at, ssl_error,
	risk_score, risk_classification, risk_scored_at,
	blacklisted, blacklist_reason, status_before_suspension,
	total_redirects, last_used, pending_link_migration,
	deleted_at, name_retained_until, version, created_at, updated_at`

// PostgresStore persists domain records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed domain store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the domains table and its indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure domains schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, d *models.Domain) error {
	now := requestcontext.Now(ctx)

	// Join an ambient transaction when the caller opened one; otherwise the
	// retention check and the insert run in their own.
	tx, ambient := platformtx.From(ctx)
	if !ambient {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin insert domain tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()
	}

	// Deleted records hold their name until the retention deadline; the
	// partial unique index only covers live rows.
	var held bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM domains
			WHERE domain_name = $1
			  AND (deleted_at IS NULL OR name_retained_until > $2)
		)`, d.DomainName, now).Scan(&held); err != nil {
		return fmt.Errorf("check domain name retention: %w", err)
	}
	if held {
		return fmt.Errorf("domain name %q already registered: %w", d.DomainName, sentinel.ErrConflict)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO domains (`+domainColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
		        $27, $28, $29, $30)`,
		insertArgs(d)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("domain name %q already registered: %w", d.DomainName, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert domain: %w", err)
	}

	if !ambient {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit insert domain tx: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	return s.queryOne(ctx, `SELECT `+domainColumns+` FROM domains WHERE id = $1`, uuid.UUID(domainID))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Domain, error) {
	return s.queryOne(ctx, `SELECT `+domainColumns+` FROM domains WHERE domain_name = $1 AND deleted_at IS NULL`, name)
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.Domain, error) {
	return s.queryOne(ctx, `SELECT `+domainColumns+` FROM domains WHERE verification_token = $1 AND deleted_at IS NULL`, token)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Domain, error) {
	return s.queryMany(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE owner_id = $1 AND owner_type = $2 AND deleted_at IS NULL
		ORDER BY created_at`,
		uuid.UUID(owner.ID), string(owner.Type))
}

func (s *PostgresStore) CountActiveByOwner(ctx context.Context, owner id.Owner) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM domains
		WHERE owner_id = $1 AND owner_type = $2
		  AND deleted_at IS NULL
		  AND status IN ('RESERVED', 'PENDING', 'VERIFIED')`,
		uuid.UUID(owner.ID), string(owner.Type)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active domains: %w", err)
	}
	return count, nil
}

// Update persists the record if the caller's Version matches the stored one,
// then increments Version on the caller's record.
func (s *PostgresStore) Update(ctx context.Context, d *models.Domain) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE domains SET
			domain_name = $2, owner_id = $3, owner_type = $4, status = $5,
			verification_token = $6, verification_attempts = $7,
			last_verification_attempt = $8, verification_error = $9,
			next_reconfirmation_due = $10, reserved_until = $11,
			ssl_status = $12, ssl_provider = $13, ssl_issued_at = $14,
			ssl_expires_at = $15, ssl_error = $16,
			risk_score = $17, risk_classification = $18, risk_scored_at = $19,
			blacklisted = $20, blacklist_reason = $21, status_before_suspension = $22,
			total_redirects = $23, last_used = $24, pending_link_migration = $25,
			deleted_at = $26, name_retained_until = $27,
			version = $28 + 1, updated_at = $29
		WHERE id = $1 AND version = $28`,
		uuid.UUID(d.ID), d.DomainName, uuid.UUID(d.Owner.ID), string(d.Owner.Type), string(d.Status),
		d.VerificationToken, d.VerificationAttempts,
		nullTime(d.LastVerificationAttempt), d.VerificationError,
		nullTime(d.NextReconfirmationDue), nullTime(d.ReservedUntil),
		string(d.SSLStatus), d.SSLProvider, nullTime(d.SSLIssuedAt),
		nullTime(d.SSLExpiresAt), d.SSLError,
		d.RiskScore, string(d.RiskClassification), nullTime(d.RiskScoredAt),
		d.Blacklisted, d.BlacklistReason, string(d.StatusBeforeSuspension),
		d.TotalRedirects, nullTime(d.LastUsed), d.PendingLinkMigration,
		nullTime(d.DeletedAt), nullTime(d.NameRetainedUntil),
		d.Version, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update domain rows affected: %w", err)
	}
	if affected == 0 {
		var current int64
		err := s.db.QueryRowContext(ctx, `SELECT version FROM domains WHERE id = $1`, uuid.UUID(d.ID)).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check domain version: %w", err)
		}
		return fmt.Errorf("domain %s expected version %d, have %d: %w",
			d.ID, d.Version, current, sentinel.ErrVersionConflict)
	}

	d.Version++
	return nil
}

func (s *PostgresStore) DueForVerification(ctx context.Context, now time.Time, limit int) ([]*models.Domain, error) {
	return s.queryMany(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE deleted_at IS NULL AND NOT blacklisted
		  AND (status = 'PENDING' OR (status = 'RESERVED' AND reserved_until > $1))
		ORDER BY updated_at
		LIMIT $2`, now, limit)
}

func (s *PostgresStore) DueForReconfirmation(ctx context.Context, now time.Time, limit int) ([]*models.Domain, error) {
	return s.queryMany(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE deleted_at IS NULL AND NOT blacklisted
		  AND status = 'VERIFIED' AND next_reconfirmation_due <= $1
		ORDER BY next_reconfirmation_due
		LIMIT $2`, now, limit)
}

func (s *PostgresStore) DueForRenewal(ctx context.Context, now time.Time, renewalWindow time.Duration, limit int) ([]*models.Domain, error) {
	return s.queryMany(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE deleted_at IS NULL AND NOT blacklisted AND status = 'VERIFIED'
		  AND (ssl_status IN ('PENDING', 'EXPIRED')
		       OR (ssl_status = 'ACTIVE' AND ssl_expires_at <= $1))
		ORDER BY ssl_expires_at NULLS FIRST
		LIMIT $2`, now.Add(renewalWindow), limit)
}

func (s *PostgresStore) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*models.Domain, error) {
	return s.queryMany(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE deleted_at IS NULL
		  AND status = 'RESERVED' AND reserved_until < $1
		ORDER BY reserved_until
		LIMIT $2`, now, limit)
}

func (s *PostgresStore) DueForRescore(ctx context.Context, interval time.Duration, now time.Time, limit int) ([]*models.Domain, error) {
	return s.queryMany(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE deleted_at IS NULL AND status <> 'SUSPENDED'
		  AND (risk_scored_at IS NULL OR risk_scored_at <= $1)
		ORDER BY risk_scored_at NULLS FIRST
		LIMIT $2`, now.Add(-interval), limit)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.Domain, error) {
	d, err := scanDomain(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find domain: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Domain, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	var result []*models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain row: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domain rows: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*models.Domain, error) {
	var (
		d             models.Domain
		domainUUID    uuid.UUID
		ownerUUID     uuid.UUID
		ownerType     string
		status        string
		sslStatus     string
		riskClass     string
		priorStatus   string
		lastAttempt   sql.NullTime
		reconfirmDue  sql.NullTime
		reservedUntil sql.NullTime
		sslIssuedAt   sql.NullTime
		sslExpiresAt  sql.NullTime
		riskScoredAt  sql.NullTime
		lastUsed      sql.NullTime
		deletedAt     sql.NullTime
		retainedUntil sql.NullTime
	)
	err := row.Scan(
		&domainUUID, &d.DomainName, &ownerUUID, &ownerType, &status,
		&d.VerificationToken, &d.VerificationAttempts, &lastAttempt,
		&d.VerificationError, &reconfirmDue, &reservedUntil,
		&sslStatus, &d.SSLProvider, &sslIssuedAt, &sslExpiresAt, &d.SSLError,
		&d.RiskScore, &riskClass, &riskScoredAt,
		&d.Blacklisted, &d.BlacklistReason, &priorStatus,
		&d.TotalRedirects, &lastUsed, &d.PendingLinkMigration,
		&deletedAt, &retainedUntil, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.ID = id.DomainID(domainUUID)
	d.Owner = id.Owner{ID: id.OwnerID(ownerUUID), Type: id.OwnerType(ownerType)}
	d.Status = models.DomainStatus(status)
	d.SSLStatus = models.SSLStatus(sslStatus)
	d.RiskClassification = models.RiskClassification(riskClass)
	d.StatusBeforeSuspension = models.DomainStatus(priorStatus)
	d.LastVerificationAttempt = timePtr(lastAttempt)
	d.NextReconfirmationDue = timePtr(reconfirmDue)
	d.ReservedUntil = timePtr(reservedUntil)
	d.SSLIssuedAt = timePtr(sslIssuedAt)
	d.SSLExpiresAt = timePtr(sslExpiresAt)
	d.RiskScoredAt = timePtr(riskScoredAt)
	d.LastUsed = timePtr(lastUsed)
	d.DeletedAt = timePtr(deletedAt)
	d.NameRetainedUntil = timePtr(retainedUntil)
	return &d, nil
}

func insertArgs(d *models.Domain) []any {
	return []any{
		uuid.UUID(d.ID), d.DomainName, uuid.UUID(d.Owner.ID), string(d.Owner.Type), string(d.Status),
		d.VerificationToken, d.VerificationAttempts, nullTime(d.LastVerificationAttempt),
		d.VerificationError, nullTime(d.NextReconfirmationDue), nullTime(d.ReservedUntil),
		string(d.SSLStatus), d.SSLProvider, nullTime(d.SSLIssuedAt), nullTime(d.SSLExpiresAt), d.SSLError,
		d.RiskScore, string(d.RiskClassification), nullTime(d.RiskScoredAt),
		d.Blacklisted, d.BlacklistReason, string(d.StatusBeforeSuspension),
		d.TotalRedirects, nullTime(d.LastUsed), d.PendingLinkMigration,
		nullTime(d.DeletedAt), nullTime(d.NameRetainedUntil),
		d.Version, d.CreatedAt, d.UpdatedAt,
	}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
