package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"linkforge/internal/domains/models"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/platform/httputil"
	request "linkforge/pkg/platform/middleware/request"
	"linkforge/pkg/requestcontext"
)

// Service defines the interface for domain lifecycle operations.
type Service interface {
	Reserve(ctx context.Context, rawName string, owner id.Owner) (*models.Domain, error)
	Get(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Domain, error)
	Delete(ctx context.Context, domainID id.DomainID) error
	TransferOwnership(ctx context.Context, domainID id.DomainID, newOwner id.Owner, migrateLinks bool) (*models.Domain, error)
	ResetVerification(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Verify(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Reconfirm(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	ProvisionCertificate(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Blacklist(ctx context.Context, domainID id.DomainID, reason string) (*models.Domain, error)
	Unblacklist(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Rescore(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
}

// EligibilityChecker answers whether a hostname may serve redirect traffic.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, hostname string) (bool, error)
}

// Handler wires domain endpoints to the domains service.
type Handler struct {
	service     Service
	eligibility EligibilityChecker
	logger      *slog.Logger
}

// New constructs a domains handler with its dependencies.
func New(service Service, eligibility EligibilityChecker, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		eligibility: eligibility,
		logger:      logger,
	}
}

// Register mounts the owner-facing domain endpoints on the router. The
// /domains routes require a resolved owner identity; the eligibility probe is
// read-only and stays open to the serving path.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(ActorFromHeaders)
		r.Post("/domains", h.HandleReserve)
		r.Get("/domains", h.HandleList)
		r.Get("/domains/{domainID}", h.HandleGet)
		r.Delete("/domains/{domainID}", h.HandleDelete)
		r.Post("/domains/{domainID}/verify", h.HandleVerify)
		r.Post("/domains/{domainID}/reset-verification", h.HandleResetVerification)
		r.Post("/domains/{domainID}/transfer", h.HandleTransfer)
	})
	r.Get("/serve/eligibility", h.HandleEligibility)
}

// RegisterAdmin mounts the moderation endpoints. The caller is expected to
// wrap the router with the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/domains/{domainID}/blacklist", h.HandleBlacklist)
	r.Post("/domains/{domainID}/unblacklist", h.HandleUnblacklist)
	r.Post("/domains/{domainID}/reconfirm", h.HandleReconfirm)
	r.Post("/domains/{domainID}/certificate", h.HandleProvisionCertificate)
	r.Post("/domains/{domainID}/rescore", h.HandleRescore)
}

// HandleReserve handles POST /domains requests.
func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ReserveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Reserve(ctx, req.DomainName, req.ParsedOwner())
	if err != nil {
		h.logger.ErrorContext(ctx, "domain reservation failed",
			"request_id", requestID,
			"domain_name", req.DomainName,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain reserved",
		"request_id", requestID,
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromDomainWithChallenge(d))
}

// HandleGet handles GET /domains/{domainID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Get(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomainWithChallenge(d))
}

// HandleList handles GET /domains requests, filtered by owner.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := parseOwner(r.URL.Query().Get("owner_id"), r.URL.Query().Get("owner_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	domains, err := h.service.ListByOwner(ctx, owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomains(domains))
}

// HandleDelete handles DELETE /domains/{domainID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, domainID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain deleted",
		"request_id", requestID,
		"domain_id", domainID,
	)

	w.WriteHeader(http.StatusNoContent)
}

// HandleVerify handles POST /domains/{domainID}/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	start := time.Now()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Verify(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain verification attempted",
		"request_id", requestID,
		"domain_id", d.ID,
		"status", d.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromDomainWithChallenge(d))
}

// HandleResetVerification handles POST /domains/{domainID}/reset-verification.
func (h *Handler) HandleResetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.ResetVerification(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomainWithChallenge(d))
}

// HandleTransfer handles POST /domains/{domainID}/transfer requests.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.TransferOwnership(ctx, domainID, req.ParsedNewOwner(), req.MigrateLinks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain ownership transferred",
		"request_id", requestID,
		"domain_id", d.ID,
		"new_owner_id", d.Owner.ID,
	)

	httputil.WriteJSON(w, http.StatusOK, FromDomain(d))
}

// HandleEligibility handles GET /serve/eligibility requests from the redirect
// serving path.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hostname := strings.TrimSpace(r.URL.Query().Get("hostname"))
	if hostname == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "hostname query parameter is required"))
		return
	}

	eligible, err := h.eligibility.IsEligible(ctx, hostname)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &EligibilityResponse{
		Hostname: strings.ToLower(hostname),
		Eligible: eligible,
	})
}

// HandleBlacklist handles the admin blacklist endpoint.
func (h *Handler) HandleBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[BlacklistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Blacklist(ctx, domainID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain blacklisted",
		"request_id", requestID,
		"domain_id", d.ID,
		"reason", req.Reason,
	)

	httputil.WriteJSON(w, http.StatusOK, FromDomain(d))
}

// HandleUnblacklist handles the admin unblacklist endpoint.
func (h *Handler) HandleUnblacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Unblacklist(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomain(d))
}

// HandleReconfirm handles the admin endpoint that forces a reconfirmation
// probe outside the scheduler.
func (h *Handler) HandleReconfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Reconfirm(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomain(d))
}

// HandleProvisionCertificate handles the admin endpoint that retries
// certificate issuance outside the scheduler.
func (h *Handler) HandleProvisionCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.ProvisionCertificate(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomain(d))
}

// HandleRescore handles the admin endpoint that recomputes a domain's risk
// score on demand.
func (h *Handler) HandleRescore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Rescore(ctx, domainID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomain(d))
}

// domainID extracts and parses the {domainID} URL parameter, writing the
// error response itself on failure.
func (h *Handler) domainID(w http.ResponseWriter, r *http.Request) (id.DomainID, bool) {
	domainID, err := id.ParseDomainID(chi.URLParam(r, "domainID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DomainID{}, false
	}
	return domainID, true
}

// ActorFromHeaders resolves the acting owner from the X-Owner-ID header set
// by the API gateway. A request without an identity cannot pass the ownership
// checks, so it is rejected here rather than falling through as anonymous.
func ActorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-Owner-ID"))
		if raw == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "X-Owner-ID header is required"))
			return
		}
		ownerID, err := id.ParseOwnerID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "X-Owner-ID header is not a valid owner id"))
			return
		}
		ctx := requestcontext.WithActor(r.Context(), requestcontext.ActorInfo{OwnerID: ownerID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AsAdmin marks the request as performed by an operator. Mount it after the
// admin token middleware so only authenticated operators reach it.
func AsAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithActor(r.Context(), requestcontext.ActorInfo{Admin: true})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
