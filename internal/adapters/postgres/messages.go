package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"prospector/internal/domain"
)

const messageColumns = `
    id, prospect_ref, step, subject, body, tracking_token, status,
    scheduled_at, sent_at, last_error, created_at, updated_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.ProspectID, &m.Step, &m.Subject, &m.Body, &m.TrackingToken, &m.Status,
		&m.ScheduledAt, &m.SentAt, &m.LastError, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (db *DB) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.Status == "" {
		m.Status = domain.MsgDraft
	}
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO messages (prospect_ref, step, subject, body, tracking_token, status, scheduled_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at
    `, m.ProspectID, m.Step, m.Subject, m.Body, m.TrackingToken, string(m.Status), m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "messages_live_step_idx" {
		return ErrDuplicateStep
	}
	return err
}

func (db *DB) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	m, err := scanMessage(db.Pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

func (db *DB) GetByToken(ctx context.Context, token string) (domain.Message, error) {
	m, err := scanMessage(db.Pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE tracking_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

func (db *DB) ListByProspect(ctx context.Context, prospectID string) ([]domain.Message, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE prospect_ref = $1 ORDER BY step`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) HasLiveStep(ctx context.Context, prospectID string, step int) (bool, error) {
	var live bool
	err := db.Pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM messages
            WHERE prospect_ref = $1 AND step = $2
              AND status NOT IN ('replied', 'bounced', 'cancelled')
        )
    `, prospectID, step).Scan(&live)
	return live, err
}

func (db *DB) DueApproved(ctx context.Context, now time.Time, limit int) ([]domain.Message, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE status = 'approved' AND scheduled_at <= $1
        ORDER BY scheduled_at
        LIMIT $2
    `, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (db *DB) SetMessageStatus(ctx context.Context, id string, to domain.MessageStatus) (err error) {
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

	var current domain.MessageStatus
	err = tx.QueryRow(ctx, `SELECT status FROM messages WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !current.CanTransition(to) {
		return &domain.ErrBadTransition{Kind: "message", From: string(current), To: string(to)}
	}
	_, err = tx.Exec(ctx, `UPDATE messages SET status=$2, updated_at=now() WHERE id=$1`, id, string(to))
	return err
}

func (db *DB) MarkSent(ctx context.Context, id string, at time.Time) (err error) {
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

	var current domain.MessageStatus
	err = tx.QueryRow(ctx, `SELECT status FROM messages WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !current.CanTransition(domain.MsgSent) {
		return &domain.ErrBadTransition{Kind: "message", From: string(current), To: string(domain.MsgSent)}
	}
	_, err = tx.Exec(ctx,
		`UPDATE messages SET status='sent', sent_at=$2, updated_at=now() WHERE id=$1`, id, at)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, id string, reason string) error {
	ct, err := db.Pool.Exec(ctx,
		`UPDATE messages SET status='failed', last_error=$2, updated_at=now() WHERE id=$1`, id, reason)
	if err == nil && ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return err
}

func (db *DB) CancelUnsent(ctx context.Context, prospectID string) (int, error) {
	ct, err := db.Pool.Exec(ctx, `
        UPDATE messages SET status='cancelled', updated_at=now()
        WHERE prospect_ref = $1 AND status IN ('draft', 'pending_approval', 'approved')
    `, prospectID)
	return int(ct.RowsAffected()), err
}

func (db *DB) Stuck(ctx context.Context, cutoff time.Time) ([]domain.Message, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE status IN ('sending', 'failed') AND updated_at < $1
        ORDER BY updated_at
    `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (db *DB) SentToday(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `
        SELECT count(*) FROM messages
        WHERE sent_at >= date_trunc('day', $1::timestamptz)
          AND sent_at < date_trunc('day', $1::timestamptz) + interval '1 day'
    `, day.UTC()).Scan(&n)
	return n, err
}
