package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/booking"
)

type bookingRepository struct {
	bookings      *bookingTable
	payments      *paymentTable
	notifications *notificationTable
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) booking.Repository {
	return &bookingRepository{
		bookings:      db.booking,
		payments:      db.payment,
		notifications: db.notification,
	}
}

func (repo *bookingRepository) queryBookings() []booking.Booking {
	bookings := make([]booking.Booking, 0, len(repo.bookings.table))
	for _, b := range repo.bookings.table {
		bookings = append(bookings, *b)
	}
	return bookings
}

func (repo *bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	repo.bookings.Lock()
	defer repo.bookings.Unlock()

	b.ID = uuid.New().String()
	repo.bookings.table[b.ID] = &b
	return b, nil
}

func (repo *bookingRepository) GetBookingByID(ctx context.Context, id string) (booking.Booking, error) {
	repo.bookings.RLock()
	defer repo.bookings.RUnlock()

	if b, ok := repo.bookings.table[id]; ok {
		return *b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryBookings(ctx context.Context, filter *booking.QueryFilter, ordering []core.DBOrdering) ([]booking.Booking, error) {
	repo.bookings.RLock()
	defer repo.bookings.RUnlock()

	bookings := repo.queryBookings()
	if filter != nil && !filter.IsEmpty() {
		bookings = filterBookings(bookings, filter)
	}
	sortBookings(bookings, ordering)
	return bookings, nil
}

func filterBookings(bookings []booking.Booking, filter *booking.QueryFilter) []booking.Booking {
	if filter.RequesterID != "" {
		var filtered []booking.Booking
		for _, b := range bookings {
			if b.RequesterID == filter.RequesterID {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	if bookings != nil && filter.SessionID != "" {
		var filtered []booking.Booking
		for _, b := range bookings {
			if b.SessionID == filter.SessionID {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	if bookings != nil && filter.Status != "" {
		var filtered []booking.Booking
		for _, b := range bookings {
			if string(b.Status) == filter.Status {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	if bookings != nil && filter.EnrollmentStatus != "" {
		var filtered []booking.Booking
		for _, b := range bookings {
			if string(b.EnrollmentStatus) == filter.EnrollmentStatus {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	if bookings != nil && !filter.CreatedFrom.IsZero() {
		var filtered []booking.Booking
		timeUTC := filter.CreatedFrom.UTC()
		for _, b := range bookings {
			if b.CreatedAt.Equal(timeUTC) || b.CreatedAt.After(timeUTC) {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	if bookings != nil && !filter.CreatedTo.IsZero() {
		var filtered []booking.Booking
		timeUTC := filter.CreatedTo.UTC()
		for _, b := range bookings {
			if b.CreatedAt.Before(timeUTC) || b.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	return bookings
}

func sortBookings(bookings []booking.Booking, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0]
	sort.SliceStable(bookings, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "updated_at":
			less = bookings[i].UpdatedAt.Before(bookings[j].UpdatedAt)
		default: // created_at
			less = bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
		}
		if ord.Ascending {
			return less
		}
		return !less
	})
}

func (repo *bookingRepository) TransitionEnrollment(ctx context.Context, id string, from, to booking.EnrollmentStatus, status booking.Status, notes ...string) (booking.Booking, error) {
	repo.bookings.Lock()
	defer repo.bookings.Unlock()

	b, ok := repo.bookings.table[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	if b.EnrollmentStatus != from {
		return booking.Booking{}, booking.ErrInvalidTransition
	}
	b.EnrollmentStatus = to
	b.Status = status
	if len(notes) > 0 {
		b.Notes = notes[0]
	}
	b.UpdatedAt = time.Now().UTC()
	return *b, nil
}

func (repo *bookingRepository) CancelBooking(ctx context.Context, id string) (booking.Booking, error) {
	repo.bookings.Lock()
	defer repo.bookings.Unlock()

	b, ok := repo.bookings.table[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	if b.Status == booking.StatusCancelled {
		return booking.Booking{}, booking.ErrInvalidTransition
	}
	b.Status = booking.StatusCancelled
	b.UpdatedAt = time.Now().UTC()
	return *b, nil
}

func (repo *bookingRepository) CreatePayment(ctx context.Context, p booking.Payment) (booking.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()

	p.ID = uuid.New().String()
	repo.payments.table[p.ID] = &p
	return p, nil
}

func (repo *bookingRepository) GetPaymentByBookingID(ctx context.Context, bookingID string) (booking.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()

	for _, p := range repo.payments.table {
		if p.BookingID.Valid && p.BookingID.String == bookingID {
			return *p, nil
		}
	}
	return booking.Payment{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryPayments(ctx context.Context, filter *booking.PaymentQueryFilter, ordering []core.DBOrdering) ([]booking.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()

	payments := make([]booking.Payment, 0, len(repo.payments.table))
	for _, p := range repo.payments.table {
		if filter != nil {
			if filter.Status != "" && string(p.Status) != filter.Status {
				continue
			}
			if filter.BookingID != "" && !(p.BookingID.Valid && p.BookingID.String == filter.BookingID) {
				continue
			}
		}
		payments = append(payments, *p)
	}
	sortPayments(payments, ordering)
	return payments, nil
}

func sortPayments(payments []booking.Payment, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0]
	sort.SliceStable(payments, func(i, j int) bool {
		less := payments[i].CreatedAt.Before(payments[j].CreatedAt)
		if ord.Ascending {
			return less
		}
		return !less
	})
}

func (repo *bookingRepository) SettlePayment(ctx context.Context, bookingID string, status booking.PaymentStatus, adminVerified bool, approvedBy string, approvedAt time.Time) (booking.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()

	for _, p := range repo.payments.table {
		if p.BookingID.Valid && p.BookingID.String == bookingID {
			p.Status = status
			p.AdminVerified = adminVerified
			p.Verified = adminVerified
			p.ApprovedBy = null.StringFrom(approvedBy)
			p.ApprovedAt = null.TimeFrom(approvedAt)
			p.UpdatedAt = time.Now().UTC()
			return *p, nil
		}
	}
	return booking.Payment{}, booking.ErrNotFound
}

func (repo *bookingRepository) CreateNotification(ctx context.Context, n booking.Notification) (booking.Notification, error) {
	repo.notifications.Lock()
	defer repo.notifications.Unlock()

	n.ID = uuid.New().String()
	repo.notifications.table[n.ID] = &n
	return n, nil
}

func (repo *bookingRepository) MarkNotificationsRead(ctx context.Context, typ, bookingID string) error {
	repo.notifications.Lock()
	defer repo.notifications.Unlock()

	for _, n := range repo.notifications.table {
		if n.Type == typ && n.BookingID == bookingID {
			n.Read = true
		}
	}
	return nil
}

func (repo *bookingRepository) QueryNotifications(ctx context.Context, unreadOnly bool) ([]booking.Notification, error) {
	repo.notifications.RLock()
	defer repo.notifications.RUnlock()

	notifs := make([]booking.Notification, 0, len(repo.notifications.table))
	for _, n := range repo.notifications.table {
		if unreadOnly && n.Read {
			continue
		}
		notifs = append(notifs, *n)
	}
	sort.SliceStable(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}
