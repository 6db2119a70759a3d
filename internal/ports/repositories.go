package ports

import (
	"context"
	"time"

	"prospector/internal/domain"
)

// ProspectRepository stores prospects and enforces the status transition
// table on every status write.
type ProspectRepository interface {
	Create(ctx context.Context, p *domain.Prospect) error
	Get(ctx context.Context, id string) (domain.Prospect, error)

	// SetStatus validates current -> to against the transition table and
	// returns *domain.ErrBadTransition on violation.
	SetStatus(ctx context.Context, id string, to domain.ProspectStatus) error

	// SetContact writes the recon result.
	SetContact(ctx context.Context, id string, owner *string, email string, source string, verified bool, confidence int) error
	// ClearContact wipes contact fields, used when a bounce routes a
	// high-value prospect back to recon.
	ClearContact(ctx context.Context, id string) error

	// SetAuditScores copies the latest audit sub-scores onto the prospect.
	SetAuditScores(ctx context.Context, id string, a domain.Audit) error
	// SetScore persists a scoring pass. Idempotent.
	SetScore(ctx context.Context, id string, b domain.ScoreBreakdown) error

	RecordSend(ctx context.Context, id string) error
	RecordOpen(ctx context.Context, id string) error
	RecordClick(ctx context.Context, id string) error
	RecordReply(ctx context.Context, id string, sentiment string, at time.Time) error

	// ClaimForAudit atomically claims up to limit discovered prospects with a
	// website, highest priority first, stamping claimed_by/claimed_at.
	ClaimForAudit(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error)
	// ClaimForRecon claims audited prospects without an email plus
	// no-website prospects fast-tracked straight from discovered.
	ClaimForRecon(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error)
	// ClaimForEnqueue claims enriched prospects holding a contact address,
	// highest composite score first.
	ClaimForEnqueue(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error)

	// Release drops the claim stamp without touching status.
	Release(ctx context.Context, ids []string) error
	// ReleaseStale drops claims older than maxAge and returns how many.
	ReleaseStale(ctx context.Context, maxAge time.Duration) (int, error)

	// OrphanedQueued lists queued prospects with no live outreach message.
	OrphanedQueued(ctx context.Context) ([]domain.Prospect, error)

	// StrandedBounced lists outreach-stage prospects whose sequence ended in
	// a bounce with no live message and whose status was never rerouted.
	StrandedBounced(ctx context.Context) ([]domain.Prospect, error)

	// CountByStatus returns prospect counts keyed by status.
	CountByStatus(ctx context.Context) (map[domain.ProspectStatus]int, error)
}

// MessageRepository stores outreach messages. Create enforces the at most one
// non-terminal message per (prospect, step) invariant.
type MessageRepository interface {
	CreateMessage(ctx context.Context, m *domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, error)
	GetByToken(ctx context.Context, token string) (domain.Message, error)
	ListByProspect(ctx context.Context, prospectID string) ([]domain.Message, error)

	// HasLiveStep reports whether a non-terminal message exists for the step.
	HasLiveStep(ctx context.Context, prospectID string, step int) (bool, error)

	// DueApproved returns approved messages scheduled at or before now,
	// oldest schedule first.
	DueApproved(ctx context.Context, now time.Time, limit int) ([]domain.Message, error)

	// SetMessageStatus validates the transition table; *domain.ErrBadTransition
	// on violation.
	SetMessageStatus(ctx context.Context, id string, to domain.MessageStatus) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkFailed records the transport error verbatim for manual review.
	MarkFailed(ctx context.Context, id string, reason string) error

	// CancelUnsent cancels all draft/pending/approved messages for the
	// prospect and returns how many were cancelled.
	CancelUnsent(ctx context.Context, prospectID string) (int, error)

	// Stuck returns messages sitting in sending or failed since before cutoff.
	Stuck(ctx context.Context, cutoff time.Time) ([]domain.Message, error)

	// SentToday counts messages sent on the given day, for the daily cap.
	SentToday(ctx context.Context, day time.Time) (int, error)
}

// AuditRepository stores immutable audit records.
type AuditRepository interface {
	CreateAudit(ctx context.Context, a *domain.Audit) error
	// LatestByProspect returns the newest audit, or found=false.
	LatestByProspect(ctx context.Context, prospectID string) (domain.Audit, bool, error)
}

// AreaRepository tracks geographic crawl units.
type AreaRepository interface {
	CreateArea(ctx context.Context, a *domain.Area) error
	// NextIncomplete returns the next area still being crawled.
	NextIncomplete(ctx context.Context) (domain.Area, bool, error)
	// Advance moves the crawl cursor, optionally marking the area complete.
	Advance(ctx context.Context, id string, offset int, complete bool) error
}
