package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"prospector/internal/domain"
)

func (db *DB) CreateAudit(ctx context.Context, a *domain.Audit) error {
	return db.Pool.QueryRow(ctx, `
        INSERT INTO audits (prospect_ref, speed, mobile, seo, security, access, overall,
                            ssl_valid, dated_design, has_contact, has_cta)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at
    `, a.ProspectID, a.Speed, a.Mobile, a.SEO, a.Security, a.Access, a.Overall,
		a.SSLValid, a.DatedDesign, a.HasContact, a.HasCTA,
	).Scan(&a.ID, &a.CreatedAt)
}

func (db *DB) LatestByProspect(ctx context.Context, prospectID string) (domain.Audit, bool, error) {
	var a domain.Audit
	err := db.Pool.QueryRow(ctx, `
        SELECT id, prospect_ref, speed, mobile, seo, security, access, overall,
               ssl_valid, dated_design, has_contact, has_cta, created_at
        FROM audits
        WHERE prospect_ref = $1
        ORDER BY created_at DESC
        LIMIT 1
    `, prospectID).Scan(
		&a.ID, &a.ProspectID, &a.Speed, &a.Mobile, &a.SEO, &a.Security, &a.Access, &a.Overall,
		&a.SSLValid, &a.DatedDesign, &a.HasContact, &a.HasCTA, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Audit{}, false, nil
	}
	if err != nil {
		return domain.Audit{}, false, err
	}
	return a, true, nil
}

func (db *DB) CreateArea(ctx context.Context, a *domain.Area) error {
	return db.Pool.QueryRow(ctx, `
        INSERT INTO areas (city, business_type, last_offset, complete)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at
    `, a.City, a.BusinessType, a.LastOffset, a.Complete,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (db *DB) NextIncomplete(ctx context.Context) (domain.Area, bool, error) {
	var a domain.Area
	err := db.Pool.QueryRow(ctx, `
        SELECT id, city, business_type, last_offset, complete, created_at, updated_at
        FROM areas
        WHERE NOT complete
        ORDER BY created_at
        LIMIT 1
    `).Scan(&a.ID, &a.City, &a.BusinessType, &a.LastOffset, &a.Complete, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Area{}, false, nil
	}
	if err != nil {
		return domain.Area{}, false, err
	}
	return a, true, nil
}

func (db *DB) Advance(ctx context.Context, id string, offset int, complete bool) error {
	ct, err := db.Pool.Exec(ctx,
		`UPDATE areas SET last_offset=$2, complete=$3, updated_at=now() WHERE id=$1`,
		id, offset, complete)
	if err == nil && ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return err
}
