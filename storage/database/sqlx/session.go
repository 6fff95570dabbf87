package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/session"
)

type sessionRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Level         string    `db:"level"`
	InstructorID  string    `db:"instructor_id"`
	StartsAt      time.Time `db:"starts_at"`
	DurationMin   int       `db:"duration_min"`
	PriceCents    int64     `db:"price_cents"`
	Currency      string    `db:"currency"`
	Capacity      int       `db:"capacity"`
	EnrolledCount int       `db:"enrolled_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) row(sess session.Session) sessionRow {
	return sessionRow{
		ID:            sess.ID,
		Name:          sess.Name,
		Level:         sess.Level,
		InstructorID:  sess.InstructorID,
		StartsAt:      sess.StartsAt.UTC(),
		DurationMin:   sess.DurationMin,
		PriceCents:    sess.PriceCents,
		Currency:      sess.Currency,
		Capacity:      sess.Capacity,
		EnrolledCount: sess.EnrolledCount,
		CreatedAt:     sess.CreatedAt.UTC(),
		UpdatedAt:     sess.UpdatedAt.UTC(),
	}
}

func (repo sessionRepository) unrow(row sessionRow) session.Session {
	return session.Session{
		ID:            row.ID,
		Name:          row.Name,
		Level:         row.Level,
		InstructorID:  row.InstructorID,
		StartsAt:      row.StartsAt,
		DurationMin:   row.DurationMin,
		PriceCents:    row.PriceCents,
		Currency:      row.Currency,
		Capacity:      row.Capacity,
		EnrolledCount: row.EnrolledCount,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to session.ErrNotFound
func (repo sessionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo sessionRepository) CreateSessions(ctx context.Context, sessions []session.Session) ([]session.Session, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `
		INSERT INTO session (id, name, level, instructor_id, starts_at, duration_min, price_cents, currency, capacity, enrolled_count, created_at, updated_at)
		VALUES (:id, :name, :level, :instructor_id, :starts_at, :duration_min, :price_cents, :currency, :capacity, :enrolled_count, :created_at, :updated_at)`

	created := make([]session.Session, 0, len(sessions))
	for _, sess := range sessions {
		sess.ID = uuid.New().String()
		if _, err = tx.NamedExecContext(ctx, q, repo.row(sess)); err != nil {
			return nil, errors.Wrap(err, "inserting session")
		}
		created = append(created, sess)
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing sessions")
	}
	return created, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM session WHERE id = $1`, id); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "finding session by ID")
	}
	return repo.unrow(row), nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if !filter.From.IsZero() {
			conds = append(conds, "starts_at >= "+arg(filter.From.UTC()))
		}
		if !filter.To.IsZero() {
			conds = append(conds, "starts_at <= "+arg(filter.To.UTC()))
		}
		if filter.Level != "" {
			conds = append(conds, "level = "+arg(filter.Level))
		}
		if filter.InstructorID != "" {
			conds = append(conds, "instructor_id = "+arg(filter.InstructorID))
		}
	}

	q := `SELECT * FROM session`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderByClause(ordering, "starts_at ASC")

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, repo.unrow(row))
	}
	return sessions, nil
}

// ReserveSeat increments enrolled_count only while below capacity; the
// guard and the write are one statement, safe under concurrent submits.
func (repo sessionRepository) ReserveSeat(ctx context.Context, id string) error {
	q := `UPDATE session SET enrolled_count = enrolled_count + 1 WHERE id = $1 AND enrolled_count < capacity`
	res, err := repo.db.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "reserving seat")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reserving seat")
	}
	if n == 0 {
		// full, or gone
		var exists bool
		if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM session WHERE id = $1)`, id); err != nil {
			return errors.Wrap(err, "reserving seat")
		}
		if !exists {
			return session.ErrNotFound
		}
		return session.ErrSessionFull
	}
	return nil
}

func (repo sessionRepository) ReleaseSeat(ctx context.Context, id string) error {
	q := `UPDATE session SET enrolled_count = enrolled_count - 1 WHERE id = $1 AND enrolled_count > 0`
	res, err := repo.db.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "releasing seat")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM session WHERE id = $1)`, id); err != nil {
			return errors.Wrap(err, "releasing seat")
		}
		if !exists {
			return session.ErrNotFound
		}
	}
	return nil
}

func (repo sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) error {
	q := `DELETE FROM session WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, q, pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	return nil
}
