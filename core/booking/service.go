package booking

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/session"
)

var NowFunc = time.Now // mockable

// event keys
const (
	EventSubmitted = "booking.submitted"
	EventApproved  = "booking.approved"
	EventRejected  = "booking.rejected"
	EventCancelled = "booking.cancelled"
)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		GetBookingByID(ctx context.Context, id string) (Booking, error)
		// QueryBookings applies AND operation on available QueryFilter fields.
		QueryBookings(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Booking, error)
		// TransitionEnrollment compare-and-sets the enrollment axis: the write
		// only applies if the booking's enrollment status still equals `from`.
		// Fails with ErrNotFound if the booking does not exist and
		// ErrInvalidTransition if it exists in another enrollment state.
		TransitionEnrollment(ctx context.Context, id string, from, to EnrollmentStatus, status Status, notes ...string) (Booking, error)
		// CancelBooking compare-and-sets Status to cancelled, failing with
		// ErrInvalidTransition if it already is. The enrollment axis is untouched.
		CancelBooking(ctx context.Context, id string) (Booking, error)

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPaymentByBookingID(ctx context.Context, bookingID string) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentQueryFilter, ordering []core.DBOrdering) ([]Payment, error)
		// SettlePayment updates the payment owned by bookingID in one write:
		// status, admin verification and approval stamp.
		SettlePayment(ctx context.Context, bookingID string, status PaymentStatus, adminVerified bool, approvedBy string, approvedAt time.Time) (Payment, error)

		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		MarkNotificationsRead(ctx context.Context, typ, bookingID string) error
		QueryNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error)
	}

	// SessionStore is the slice of the session domain the lifecycle needs.
	// session.Service satisfies it.
	SessionStore interface {
		GetByID(ctx context.Context, id string) (session.Session, error)
		ReserveSeat(ctx context.Context, id string) error
		ReleaseSeat(ctx context.Context, id string) error
	}

	Service interface {
		Submit(ctx context.Context, nb NewBooking) (Booking, error)
		Approve(ctx context.Context, bookingID, adminID string, notes ...string) error
		Reject(ctx context.Context, bookingID, adminID string) error
		Cancel(ctx context.Context, bookingID, requesterID string) error

		GetByID(ctx context.Context, id string) (Booking, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Booking, error)
		PaymentForBooking(ctx context.Context, bookingID string) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentQueryFilter, ordering []core.DBOrdering) ([]Payment, error)
		Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error)
	}

	service struct {
		repo     Repository
		sessions SessionStore
		mailSvc  core.EmailService
		bus      core.Broadcaster
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, sessions SessionStore, mailSvc core.EmailService, bus core.Broadcaster, conf *core.Config) Service {
	return &service{
		repo:     repo,
		sessions: sessions,
		mailSvc:  mailSvc,
		bus:      bus,
		conf:     conf,
	}
}

// Submit creates the booking request, its pending payment and the admin
// notification, in that order. The seat is taken atomically up front: a full
// session fails with session.ErrSessionFull before anything is written.
// A failure between writes surfaces as *PartialFailureError listing what was
// already created.
func (svc *service) Submit(ctx context.Context, nb NewBooking) (Booking, error) {
	sess, err := svc.sessions.GetByID(ctx, nb.SessionID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return Booking{}, ErrNotFound
		}
		return Booking{}, errors.Wrap(err, "finding session")
	}

	if err = svc.sessions.ReserveSeat(ctx, sess.ID); err != nil {
		return Booking{}, err // session.ErrSessionFull; no writes performed
	}

	now := NowFunc().UTC()
	bkg, err := svc.repo.CreateBooking(ctx, Booking{
		RequesterID:      nb.RequesterID,
		SessionID:        sess.ID,
		Status:           StatusConfirmed,
		EnrollmentStatus: EnrollmentPending,
		Notes:            nb.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		if relErr := svc.sessions.ReleaseSeat(ctx, sess.ID); relErr != nil {
			return Booking{}, newPartialFailure("submit", err, Artifact{Kind: "seat", ID: sess.ID})
		}
		return Booking{}, errors.Wrap(err, "creating booking")
	}

	pay, err := svc.repo.CreatePayment(ctx, Payment{
		BookingID: null.StringFrom(bkg.ID),
		Amount:    sess.PriceCents,
		Currency:  sess.Currency,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Booking{}, newPartialFailure("submit", err,
			Artifact{Kind: "seat", ID: sess.ID},
			Artifact{Kind: "booking", ID: bkg.ID},
		)
	}

	_, err = svc.repo.CreateNotification(ctx, Notification{
		Type:      NotificationBookingRequest,
		BookingID: bkg.ID,
		Message:   fmt.Sprintf("New booking request for %q on %s", sess.Name, sess.StartsAt.Format("2006-01-02 15:04")),
		CreatedAt: now,
	})
	if err != nil {
		return Booking{}, newPartialFailure("submit", err,
			Artifact{Kind: "seat", ID: sess.ID},
			Artifact{Kind: "booking", ID: bkg.ID},
			Artifact{Kind: "payment", ID: pay.ID},
		)
	}

	svc.sendAdminMail(sess, bkg)
	_ = svc.bus.Broadcast(ctx, EventSubmitted, map[string]interface{}{
		"booking_id": bkg.ID,
		"session_id": sess.ID,
	})
	return bkg, nil
}

// Approve moves a pending booking to approved and settles its payment as
// paid and admin-verified, then clears the admin notification. Only pending
// bookings can be approved; a concurrent resolution loses with
// ErrInvalidTransition.
func (svc *service) Approve(ctx context.Context, bookingID, adminID string, notes ...string) error {
	bkg, err := svc.repo.TransitionEnrollment(ctx, bookingID, EnrollmentPending, EnrollmentApproved, StatusConfirmed, notes...)
	if err != nil {
		return err
	}

	if _, err = svc.repo.SettlePayment(ctx, bkg.ID, PaymentPaid, true, adminID, NowFunc().UTC()); err != nil {
		return newPartialFailure("approve", err, Artifact{Kind: "booking", ID: bkg.ID})
	}

	if err = svc.repo.MarkNotificationsRead(ctx, NotificationBookingRequest, bkg.ID); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}

	_ = svc.bus.Broadcast(ctx, EventApproved, map[string]interface{}{"booking_id": bkg.ID})
	return nil
}

// Reject is Approve's mirror: enrollment rejected, operational status
// cancelled, payment cancelled with the admin stamp, seat released.
func (svc *service) Reject(ctx context.Context, bookingID, adminID string) error {
	bkg, err := svc.repo.TransitionEnrollment(ctx, bookingID, EnrollmentPending, EnrollmentRejected, StatusCancelled)
	if err != nil {
		return err
	}

	if _, err = svc.repo.SettlePayment(ctx, bkg.ID, PaymentCancelled, false, adminID, NowFunc().UTC()); err != nil {
		return newPartialFailure("reject", err, Artifact{Kind: "booking", ID: bkg.ID})
	}

	if err = svc.repo.MarkNotificationsRead(ctx, NotificationBookingRequest, bkg.ID); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}

	if err = svc.sessions.ReleaseSeat(ctx, bkg.SessionID); err != nil {
		return errors.Wrap(err, "releasing seat")
	}

	_ = svc.bus.Broadcast(ctx, EventRejected, map[string]interface{}{"booking_id": bkg.ID})
	return nil
}

// Cancel flips the operational status only; the enrollment axis keeps
// whatever the admin decided. Allowed up to CancellationCutoff before the
// session starts.
func (svc *service) Cancel(ctx context.Context, bookingID, requesterID string) error {
	bkg, err := svc.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if bkg.RequesterID != requesterID {
		return ErrNotFound // do not leak other users' bookings
	}
	if bkg.Status == StatusCancelled {
		return ErrInvalidTransition
	}

	sess, err := svc.sessions.GetByID(ctx, bkg.SessionID)
	if err != nil {
		return errors.Wrap(err, "finding session")
	}
	if !NowFunc().UTC().Before(sess.StartsAt.Add(-svc.conf.CancellationCutoff)) {
		return ErrCancellationWindowClosed
	}

	if _, err = svc.repo.CancelBooking(ctx, bkg.ID); err != nil {
		return err
	}
	if err = svc.sessions.ReleaseSeat(ctx, bkg.SessionID); err != nil {
		return errors.Wrap(err, "releasing seat")
	}

	_ = svc.bus.Broadcast(ctx, EventCancelled, map[string]interface{}{"booking_id": bkg.ID})
	return nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Booking, error) {
	return svc.repo.GetBookingByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Booking, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryBookings(ctx, filter, ordering)
}

func (svc *service) PaymentForBooking(ctx context.Context, bookingID string) (Payment, error) {
	return svc.repo.GetPaymentByBookingID(ctx, bookingID)
}

func (svc *service) QueryPayments(ctx context.Context, filter *PaymentQueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

func (svc *service) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, unreadOnly)
}

func (svc *service) sendAdminMail(sess session.Session, bkg Booking) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{svc.conf.AdminEmail},
		Subject: "New booking request",
		BodyStr: fmt.Sprintf(
			"A new booking request is awaiting review.\n\nSession: %s (%s)\nBooking: %s\n\nReview it at %s/admin/bookings/%s",
			sess.Name, sess.StartsAt.Format("2006-01-02 15:04"), bkg.ID, svc.conf.FrontendBaseURL, bkg.ID,
		),
	})
}
