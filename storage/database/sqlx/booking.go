package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/booking"
)

type bookingRow struct {
	ID               string    `db:"id"`
	RequesterID      string    `db:"requester_id"`
	SessionID        string    `db:"session_id"`
	Status           string    `db:"status"`
	EnrollmentStatus string    `db:"enrollment_status"`
	Notes            string    `db:"notes"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type paymentRow struct {
	ID            string      `db:"id"`
	BookingID     null.String `db:"booking_id"`
	Amount        int64       `db:"amount"`
	Currency      string      `db:"currency"`
	Status        string      `db:"status"`
	AdminVerified bool        `db:"admin_verified"`
	Verified      bool        `db:"verified"`
	ApprovedAt    null.Time   `db:"approved_at"`
	ApprovedBy    null.String `db:"approved_by"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

type notificationRow struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	BookingID string    `db:"booking_id"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

type bookingRepository struct {
	db *sqlx.DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo bookingRepository) row(b booking.Booking) bookingRow {
	return bookingRow{
		ID:               b.ID,
		RequesterID:      b.RequesterID,
		SessionID:        b.SessionID,
		Status:           string(b.Status),
		EnrollmentStatus: string(b.EnrollmentStatus),
		Notes:            b.Notes,
		CreatedAt:        b.CreatedAt.UTC(),
		UpdatedAt:        b.UpdatedAt.UTC(),
	}
}

func (repo bookingRepository) unrow(row bookingRow) booking.Booking {
	return booking.Booking{
		ID:               row.ID,
		RequesterID:      row.RequesterID,
		SessionID:        row.SessionID,
		Status:           booking.Status(row.Status),
		EnrollmentStatus: booking.EnrollmentStatus(row.EnrollmentStatus),
		Notes:            row.Notes,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func (repo bookingRepository) unrowPayment(row paymentRow) booking.Payment {
	return booking.Payment{
		ID:            row.ID,
		BookingID:     row.BookingID,
		Amount:        row.Amount,
		Currency:      row.Currency,
		Status:        booking.PaymentStatus(row.Status),
		AdminVerified: row.AdminVerified,
		Verified:      row.Verified,
		ApprovedAt:    row.ApprovedAt,
		ApprovedBy:    row.ApprovedBy,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to booking.ErrNotFound
func (repo bookingRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return booking.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	b.ID = uuid.New().String()
	q := `
		INSERT INTO booking (id, requester_id, session_id, status, enrollment_status, notes, created_at, updated_at)
		VALUES (:id, :requester_id, :session_id, :status, :enrollment_status, :notes, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, repo.row(b)); err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return b, nil
}

func (repo bookingRepository) GetBookingByID(ctx context.Context, id string) (booking.Booking, error) {
	var row bookingRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM booking WHERE id = $1`, id); err != nil {
		return booking.Booking{}, repo.trapNoRowsErr(err, "finding booking by ID")
	}
	return repo.unrow(row), nil
}

func (repo bookingRepository) QueryBookings(ctx context.Context, filter *booking.QueryFilter, ordering []core.DBOrdering) ([]booking.Booking, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.RequesterID != "" {
			conds = append(conds, "requester_id = "+arg(filter.RequesterID))
		}
		if filter.SessionID != "" {
			conds = append(conds, "session_id = "+arg(filter.SessionID))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
		if filter.EnrollmentStatus != "" {
			conds = append(conds, "enrollment_status = "+arg(filter.EnrollmentStatus))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	q := `SELECT * FROM booking`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderByClause(ordering, "created_at DESC")

	var rows []bookingRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, repo.unrow(row))
	}
	return bookings, nil
}

// TransitionEnrollment guards the enrollment axis in the WHERE clause: the
// UPDATE applies only while the booking is still in `from`. Zero rows means
// the booking is gone or a concurrent admin got there first.
func (repo bookingRepository) TransitionEnrollment(ctx context.Context, id string, from, to booking.EnrollmentStatus, status booking.Status, notes ...string) (booking.Booking, error) {
	q := `
		UPDATE booking
		SET enrollment_status = $1, status = $2, updated_at = $3
		WHERE id = $4 AND enrollment_status = $5`
	args := []interface{}{string(to), string(status), time.Now().UTC(), id, string(from)}
	if len(notes) > 0 {
		q = `
		UPDATE booking
		SET enrollment_status = $1, status = $2, updated_at = $3, notes = $6
		WHERE id = $4 AND enrollment_status = $5`
		args = append(args, notes[0])
	}

	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "transitioning booking")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "transitioning booking")
	}
	if n == 0 {
		if _, err = repo.GetBookingByID(ctx, id); err != nil {
			return booking.Booking{}, err // booking.ErrNotFound
		}
		return booking.Booking{}, booking.ErrInvalidTransition
	}
	return repo.GetBookingByID(ctx, id)
}

func (repo bookingRepository) CancelBooking(ctx context.Context, id string) (booking.Booking, error) {
	q := `UPDATE booking SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1`
	res, err := repo.db.ExecContext(ctx, q, string(booking.StatusCancelled), time.Now().UTC(), id)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "cancelling booking")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "cancelling booking")
	}
	if n == 0 {
		if _, err = repo.GetBookingByID(ctx, id); err != nil {
			return booking.Booking{}, err // booking.ErrNotFound
		}
		return booking.Booking{}, booking.ErrInvalidTransition
	}
	return repo.GetBookingByID(ctx, id)
}

func (repo bookingRepository) CreatePayment(ctx context.Context, p booking.Payment) (booking.Payment, error) {
	p.ID = uuid.New().String()
	row := paymentRow{
		ID:            p.ID,
		BookingID:     p.BookingID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		AdminVerified: p.AdminVerified,
		Verified:      p.Verified,
		ApprovedAt:    p.ApprovedAt,
		ApprovedBy:    p.ApprovedBy,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
	q := `
		INSERT INTO payment (id, booking_id, amount, currency, status, admin_verified, verified, approved_at, approved_by, created_at, updated_at)
		VALUES (:id, :booking_id, :amount, :currency, :status, :admin_verified, :verified, :approved_at, :approved_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return booking.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo bookingRepository) GetPaymentByBookingID(ctx context.Context, bookingID string) (booking.Payment, error) {
	var row paymentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment WHERE booking_id = $1`, bookingID); err != nil {
		return booking.Payment{}, repo.trapNoRowsErr(err, "finding payment")
	}
	return repo.unrowPayment(row), nil
}

func (repo bookingRepository) QueryPayments(ctx context.Context, filter *booking.PaymentQueryFilter, ordering []core.DBOrdering) ([]booking.Payment, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
		if filter.BookingID != "" {
			conds = append(conds, "booking_id = "+arg(filter.BookingID))
		}
	}

	q := `SELECT * FROM payment`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderByClause(ordering, "created_at DESC")

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]booking.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, repo.unrowPayment(row))
	}
	return payments, nil
}

func (repo bookingRepository) SettlePayment(ctx context.Context, bookingID string, status booking.PaymentStatus, adminVerified bool, approvedBy string, approvedAt time.Time) (booking.Payment, error) {
	q := `
		UPDATE payment
		SET status = $1, admin_verified = $2, verified = $2, approved_by = $3, approved_at = $4, updated_at = $5
		WHERE booking_id = $6`
	res, err := repo.db.ExecContext(ctx, q, string(status), adminVerified, approvedBy, approvedAt.UTC(), time.Now().UTC(), bookingID)
	if err != nil {
		return booking.Payment{}, errors.Wrap(err, "settling payment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return booking.Payment{}, booking.ErrNotFound
	}
	return repo.GetPaymentByBookingID(ctx, bookingID)
}

func (repo bookingRepository) CreateNotification(ctx context.Context, n booking.Notification) (booking.Notification, error) {
	n.ID = uuid.New().String()
	row := notificationRow{
		ID:        n.ID,
		Type:      n.Type,
		BookingID: n.BookingID,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
	q := `
		INSERT INTO notification (id, type, booking_id, message, read, created_at)
		VALUES (:id, :type, :booking_id, :message, :read, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return booking.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo bookingRepository) MarkNotificationsRead(ctx context.Context, typ, bookingID string) error {
	q := `UPDATE notification SET read = TRUE WHERE type = $1 AND booking_id = $2`
	if _, err := repo.db.ExecContext(ctx, q, typ, bookingID); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return nil
}

func (repo bookingRepository) QueryNotifications(ctx context.Context, unreadOnly bool) ([]booking.Notification, error) {
	q := `SELECT * FROM notification`
	if unreadOnly {
		q += ` WHERE NOT read`
	}
	q += ` ORDER BY created_at DESC`

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]booking.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, booking.Notification{
			ID:        row.ID,
			Type:      row.Type,
			BookingID: row.BookingID,
			Message:   row.Message,
			Read:      row.Read,
			CreatedAt: row.CreatedAt,
		})
	}
	return notifs, nil
}
