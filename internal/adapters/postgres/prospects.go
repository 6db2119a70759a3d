package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"prospector/internal/domain"
)

const prospectColumns = `
    id, business_name, business_type, city, area_ref, website_url, has_website,
    speed_score, mobile_score, seo_score, security_score, accessibility_score, overall_score,
    owner_name, email, email_source, email_verified, email_confidence,
    grant_amount, review_count, review_rating, reviews_declining, reviews_mention_web,
    hiring, hiring_web_roles, running_ads, registered, pro_email_domain,
    under_construction, no_social_presence, competitor_gap, formed_at,
    emails_sent, opens, clicks,
    score, need, ability, timing, tier, signals,
    priority, status, claimed_by, claimed_at,
    reply_sentiment, replied_at, created_at, updated_at`

func scanProspect(row pgx.Row) (domain.Prospect, error) {
	var p domain.Prospect
	err := row.Scan(
		&p.ID, &p.BusinessName, &p.BusinessType, &p.City, &p.AreaRef, &p.WebsiteURL, &p.HasWebsite,
		&p.SpeedScore, &p.MobileScore, &p.SEOScore, &p.SecurityScore, &p.AccessibilityScore, &p.OverallScore,
		&p.OwnerName, &p.Email, &p.EmailSource, &p.EmailVerified, &p.EmailConfidence,
		&p.GrantAmount, &p.ReviewCount, &p.ReviewRating, &p.ReviewsDeclining, &p.ReviewsMentionWeb,
		&p.Hiring, &p.HiringWebRoles, &p.RunningAds, &p.Registered, &p.ProEmailDomain,
		&p.UnderConstruction, &p.NoSocialPresence, &p.CompetitorGap, &p.FormedAt,
		&p.EmailsSent, &p.Opens, &p.Clicks,
		&p.Score, &p.Need, &p.Ability, &p.Timing, &p.Tier, &p.Signals,
		&p.Priority, &p.Status, &p.ClaimedBy, &p.ClaimedAt,
		&p.ReplySentiment, &p.RepliedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (db *DB) Create(ctx context.Context, p *domain.Prospect) error {
	if p.Status == "" {
		p.Status = domain.StatusDiscovered
	}
	if !domain.ValidProspectStatus(p.Status) {
		return &domain.ErrBadTransition{Kind: "prospect", From: "", To: string(p.Status)}
	}
	return db.Pool.QueryRow(ctx, `
        INSERT INTO prospects (
            business_name, business_type, city, area_ref, website_url, has_website,
            grant_amount, review_count, review_rating, reviews_declining, reviews_mention_web,
            hiring, hiring_web_roles, running_ads, registered, pro_email_domain,
            under_construction, no_social_presence, competitor_gap, formed_at,
            priority, status
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
        RETURNING id, created_at, updated_at
    `,
		p.BusinessName, p.BusinessType, p.City, p.AreaRef, p.WebsiteURL, p.HasWebsite,
		p.GrantAmount, p.ReviewCount, p.ReviewRating, p.ReviewsDeclining, p.ReviewsMentionWeb,
		p.Hiring, p.HiringWebRoles, p.RunningAds, p.Registered, p.ProEmailDomain,
		p.UnderConstruction, p.NoSocialPresence, p.CompetitorGap, p.FormedAt,
		p.Priority, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (db *DB) Get(ctx context.Context, id string) (domain.Prospect, error) {
	p, err := scanProspect(db.Pool.QueryRow(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// SetStatus locks the row, validates the transition table, and writes the
// new status in one transaction.
func (db *DB) SetStatus(ctx context.Context, id string, to domain.ProspectStatus) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var current domain.ProspectStatus
	err = tx.QueryRow(ctx, `SELECT status FROM prospects WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !current.CanTransition(to) {
		return &domain.ErrBadTransition{Kind: "prospect", From: string(current), To: string(to)}
	}
	_, err = tx.Exec(ctx, `UPDATE prospects SET status=$2, updated_at=now() WHERE id=$1`, id, string(to))
	return err
}

func (db *DB) SetContact(ctx context.Context, id string, owner *string, email, source string, verified bool, confidence int) error {
	ct, err := db.Pool.Exec(ctx, `
        UPDATE prospects
        SET owner_name=$2, email=$3, email_source=$4, email_verified=$5, email_confidence=$6, updated_at=now()
        WHERE id=$1
    `, id, owner, email, source, verified, confidence)
	if err == nil && ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return err
}

func (db *DB) ClearContact(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE prospects
        SET owner_name=NULL, email=NULL, email_source='', email_verified=false, email_confidence=0, updated_at=now()
        WHERE id=$1
    `, id)
	return err
}

func (db *DB) SetAuditScores(ctx context.Context, id string, a domain.Audit) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE prospects
        SET speed_score=$2, mobile_score=$3, seo_score=$4, security_score=$5,
            accessibility_score=$6, overall_score=$7, updated_at=now()
        WHERE id=$1
    `, id, a.Speed, a.Mobile, a.SEO, a.Security, a.Access, a.Overall)
	return err
}

func (db *DB) SetScore(ctx context.Context, id string, b domain.ScoreBreakdown) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE prospects
        SET score=$2, need=$3, ability=$4, timing=$5, tier=$6, signals=$7, updated_at=now()
        WHERE id=$1
    `, id, b.Total, b.Need, b.Ability, b.Timing, b.Tier, b.Signals)
	return err
}

func (db *DB) RecordSend(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE prospects SET emails_sent=emails_sent+1, updated_at=now() WHERE id=$1`, id)
	return err
}

func (db *DB) RecordOpen(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE prospects SET opens=opens+1, updated_at=now() WHERE id=$1`, id)
	return err
}

func (db *DB) RecordClick(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE prospects SET clicks=clicks+1, updated_at=now() WHERE id=$1`, id)
	return err
}

func (db *DB) RecordReply(ctx context.Context, id string, sentiment string, at time.Time) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE prospects SET reply_sentiment=$2, replied_at=$3, updated_at=now() WHERE id=$1`,
		id, sentiment, at)
	return err
}

// claim atomically stamps claimed_by/claimed_at on the selected rows using
// SKIP LOCKED so concurrent workers never pick overlapping batches.
func (db *DB) claim(ctx context.Context, claimedBy string, limit int, where, order string) ([]domain.Prospect, error) {
	query := fmt.Sprintf(`
        UPDATE prospects SET claimed_by=$1, claimed_at=now()
        WHERE id IN (
            SELECT id FROM prospects
            WHERE claimed_by IS NULL AND (%s)
            ORDER BY %s
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        RETURNING `+prospectColumns, where, order)
	rows, err := db.Pool.Query(ctx, query, claimedBy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) ClaimForAudit(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error) {
	return db.claim(ctx, claimedBy, limit,
		`status = 'discovered' AND has_website`, `priority DESC, created_at`)
}

func (db *DB) ClaimForRecon(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error) {
	return db.claim(ctx, claimedBy, limit,
		`(status = 'audited' AND email IS NULL) OR (status = 'discovered' AND NOT has_website)`,
		`priority DESC, created_at`)
}

func (db *DB) ClaimForEnqueue(ctx context.Context, claimedBy string, limit int) ([]domain.Prospect, error) {
	return db.claim(ctx, claimedBy, limit,
		`status = 'enriched' AND email IS NOT NULL`, `score DESC, created_at`)
}

func (db *DB) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Pool.Exec(ctx,
		`UPDATE prospects SET claimed_by=NULL, claimed_at=NULL WHERE id = ANY($1)`, ids)
	return err
}

func (db *DB) ReleaseStale(ctx context.Context, maxAge time.Duration) (int, error) {
	ct, err := db.Pool.Exec(ctx, `
        UPDATE prospects SET claimed_by=NULL, claimed_at=NULL
        WHERE claimed_at IS NOT NULL AND claimed_at < now() - $1::interval
    `, maxAge.String())
	return int(ct.RowsAffected()), err
}

func (db *DB) OrphanedQueued(ctx context.Context) ([]domain.Prospect, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+prospectColumns+`
        FROM prospects p
        WHERE p.status = 'queued' AND NOT EXISTS (
            SELECT 1 FROM messages m
            WHERE m.prospect_ref = p.id
              AND m.status NOT IN ('replied', 'bounced', 'cancelled')
        )
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) StrandedBounced(ctx context.Context) ([]domain.Prospect, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+prospectColumns+`
        FROM prospects p
        WHERE p.status IN ('contacted', 'follow_up_1', 'follow_up_2', 'follow_up_3')
          AND EXISTS (
            SELECT 1 FROM messages m
            WHERE m.prospect_ref = p.id AND m.status = 'bounced'
          )
          AND NOT EXISTS (
            SELECT 1 FROM messages m
            WHERE m.prospect_ref = p.id
              AND m.status NOT IN ('replied', 'bounced', 'cancelled')
          )
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) CountByStatus(ctx context.Context) (map[domain.ProspectStatus]int, error) {
	rows, err := db.Pool.Query(ctx, `SELECT status, count(*) FROM prospects GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.ProspectStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.ProspectStatus(status)] = n
	}
	return out, rows.Err()
}
