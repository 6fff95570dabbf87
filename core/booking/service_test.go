package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nageo/backend/core/booking"
	"github.com/nageo/backend/core/session"
	bussvc "github.com/nageo/backend/services/bus"
	emailsvc "github.com/nageo/backend/services/email"
	inmemdb "github.com/nageo/backend/storage/database/inmem"
	testutil "github.com/nageo/backend/tests"
)

type testEnv struct {
	bkgRepo  booking.Repository
	sessRepo session.Repository
	sessSvc  session.Service
	bus      *bussvc.InProcBus
	svc      booking.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	conf := testutil.NewTestConfig()
	bus := bussvc.NewInProcBus()
	bkgRepo := inmemdb.NewBookingRepository(db)
	sessRepo := inmemdb.NewSessionRepository(db)
	sessSvc := session.NewService(sessRepo, bus)
	svc := booking.NewService(bkgRepo, sessSvc, emailsvc.NewConsoleServiceMock(conf), bus, conf)
	return &testEnv{
		bkgRepo:  bkgRepo,
		sessRepo: sessRepo,
		sessSvc:  sessSvc,
		bus:      bus,
		svc:      svc,
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	startsAt := time.Now().UTC().Add(7 * 24 * time.Hour)

	t.Run("session not found", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "swimmer", SessionID: "nope"})
		if err != booking.ErrNotFound {
			t.Errorf("Submit() error = %v, want %v", err, booking.ErrNotFound)
		}
	})

	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t)
		sess := testutil.CreateSession(t, env.sessRepo, "Beginner Tuesdays", startsAt, 10, 1500)

		bkg, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "swimmer", SessionID: sess.ID, Notes: "first time"})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if bkg.Status != booking.StatusConfirmed {
			t.Errorf("Status = %v, want %v", bkg.Status, booking.StatusConfirmed)
		}
		if bkg.EnrollmentStatus != booking.EnrollmentPending {
			t.Errorf("EnrollmentStatus = %v, want %v", bkg.EnrollmentStatus, booking.EnrollmentPending)
		}

		// seat is taken
		sess, err = env.sessSvc.GetByID(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if sess.EnrolledCount != 1 {
			t.Errorf("EnrolledCount = %d, want 1", sess.EnrolledCount)
		}

		// a pending payment mirrors the session price
		pay, err := env.svc.PaymentForBooking(ctx, bkg.ID)
		if err != nil {
			t.Fatalf("PaymentForBooking() failed: %v", err)
		}
		if pay.Status != booking.PaymentPending {
			t.Errorf("payment Status = %v, want %v", pay.Status, booking.PaymentPending)
		}
		if pay.Amount != 1500 {
			t.Errorf("payment Amount = %d, want 1500", pay.Amount)
		}
		if pay.AdminVerified || pay.Verified {
			t.Error("payment must not be verified yet")
		}

		// an unread admin alert exists
		notifs, err := env.svc.Notifications(ctx, true /* unreadOnly */)
		if err != nil {
			t.Fatalf("Notifications() failed: %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("got %d unread notifications, want 1", len(notifs))
		}
		if notifs[0].Type != booking.NotificationBookingRequest {
			t.Errorf("notification Type = %v, want %v", notifs[0].Type, booking.NotificationBookingRequest)
		}
		if notifs[0].BookingID != bkg.ID {
			t.Errorf("notification BookingID = %v, want %v", notifs[0].BookingID, bkg.ID)
		}

		if evts := env.bus.EventsByKey(booking.EventSubmitted); len(evts) != 1 {
			t.Errorf("got %d %q events, want 1", len(evts), booking.EventSubmitted)
		}
	})

	t.Run("session full", func(t *testing.T) {
		env := newTestEnv(t)
		sess := testutil.CreateSession(t, env.sessRepo, "Tiny Class", startsAt, 1, 1500)

		if _, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "first", SessionID: sess.ID}); err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		_, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "second", SessionID: sess.ID})
		if err != session.ErrSessionFull {
			t.Fatalf("Submit() error = %v, want %v", err, session.ErrSessionFull)
		}

		// nothing was written for the rejected request
		bookings, err := env.svc.Query(ctx, &booking.QueryFilter{RequesterID: "second"}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(bookings) != 0 {
			t.Errorf("got %d bookings for second requester, want 0", len(bookings))
		}
	})
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	startsAt := time.Now().UTC().Add(7 * 24 * time.Hour)

	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.svc.Approve(ctx, "nope", "admin"); err != booking.ErrNotFound {
			t.Errorf("Approve() error = %v, want %v", err, booking.ErrNotFound)
		}
	})

	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t)
		sess := testutil.CreateSession(t, env.sessRepo, "Beginner Tuesdays", startsAt, 10, 1500)
		bkg, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "swimmer", SessionID: sess.ID})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}

		if err = env.svc.Approve(ctx, bkg.ID, "admin"); err != nil {
			t.Fatalf("Approve() failed: %v", err)
		}

		bkg, err = env.svc.GetByID(ctx, bkg.ID)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if bkg.EnrollmentStatus != booking.EnrollmentApproved {
			t.Errorf("EnrollmentStatus = %v, want %v", bkg.EnrollmentStatus, booking.EnrollmentApproved)
		}
		if bkg.Status != booking.StatusConfirmed {
			t.Errorf("Status = %v, want %v", bkg.Status, booking.StatusConfirmed)
		}

		pay, err := env.svc.PaymentForBooking(ctx, bkg.ID)
		if err != nil {
			t.Fatalf("PaymentForBooking() failed: %v", err)
		}
		if pay.Status != booking.PaymentPaid {
			t.Errorf("payment Status = %v, want %v", pay.Status, booking.PaymentPaid)
		}
		if !pay.AdminVerified {
			t.Error("payment must be admin verified")
		}
		if pay.ApprovedBy.String != "admin" {
			t.Errorf("payment ApprovedBy = %v, want admin", pay.ApprovedBy.String)
		}
		if !pay.ApprovedAt.Valid {
			t.Error("payment ApprovedAt must be set")
		}

		// admin alert is cleared
		notifs, err := env.svc.Notifications(ctx, true /* unreadOnly */)
		if err != nil {
			t.Fatalf("Notifications() failed: %v", err)
		}
		if len(notifs) != 0 {
			t.Errorf("got %d unread notifications, want 0", len(notifs))
		}

		// seat stays taken
		sess, _ = env.sessSvc.GetByID(ctx, sess.ID)
		if sess.EnrolledCount != 1 {
			t.Errorf("EnrolledCount = %d, want 1", sess.EnrolledCount)
		}

		if evts := env.bus.EventsByKey(booking.EventApproved); len(evts) != 1 {
			t.Errorf("got %d %q events, want 1", len(evts), booking.EventApproved)
		}
	})

	t.Run("already resolved", func(t *testing.T) {
		env := newTestEnv(t)
		sess := testutil.CreateSession(t, env.sessRepo, "Beginner Tuesdays", startsAt, 10, 1500)
		bkg, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "swimmer", SessionID: sess.ID})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}

		if err = env.svc.Approve(ctx, bkg.ID, "admin"); err != nil {
			t.Fatalf("Approve() failed: %v", err)
		}
		if err = env.svc.Approve(ctx, bkg.ID, "admin"); err != booking.ErrInvalidTransition {
			t.Errorf("second Approve() error = %v, want %v", err, booking.ErrInvalidTransition)
		}
		if err = env.svc.Reject(ctx, bkg.ID, "admin"); err != booking.ErrInvalidTransition {
			t.Errorf("Reject() after approval error = %v, want %v", err, booking.ErrInvalidTransition)
		}
	})
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	startsAt := time.Now().UTC().Add(7 * 24 * time.Hour)

	env := newTestEnv(t)
	sess := testutil.CreateSession(t, env.sessRepo, "Beginner Tuesdays", startsAt, 10, 1500)
	bkg, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: "swimmer", SessionID: sess.ID})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if err = env.svc.Reject(ctx, bkg.ID, "admin"); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}

	bkg, err = env.svc.GetByID(ctx, bkg.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if bkg.EnrollmentStatus != booking.EnrollmentRejected {
		t.Errorf("EnrollmentStatus = %v, want %v", bkg.EnrollmentStatus, booking.EnrollmentRejected)
	}
	if bkg.Status != booking.StatusCancelled {
		t.Errorf("Status = %v, want %v", bkg.Status, booking.StatusCancelled)
	}

	pay, err := env.svc.PaymentForBooking(ctx, bkg.ID)
	if err != nil {
		t.Fatalf("PaymentForBooking() failed: %v", err)
	}
	if pay.Status != booking.PaymentCancelled {
		t.Errorf("payment Status = %v, want %v", pay.Status, booking.PaymentCancelled)
	}
	if pay.AdminVerified {
		t.Error("payment must not be admin verified")
	}

	// the seat goes back to the pool
	sess, _ = env.sessSvc.GetByID(ctx, sess.ID)
	if sess.EnrolledCount != 0 {
		t.Errorf("EnrolledCount = %d, want 0", sess.EnrolledCount)
	}

	notifs, err := env.svc.Notifications(ctx, true /* unreadOnly */)
	if err != nil {
		t.Fatalf("Notifications() failed: %v", err)
	}
	if len(notifs) != 0 {
		t.Errorf("got %d unread notifications, want 0", len(notifs))
	}

	if evts := env.bus.EventsByKey(booking.EventRejected); len(evts) != 1 {
		t.Errorf("got %d %q events, want 1", len(evts), booking.EventRejected)
	}
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	startsAt := time.Now().UTC().Add(7 * 24 * time.Hour)

	submit := func(t *testing.T, env *testEnv, requesterID string, startsAt time.Time) (session.Session, booking.Booking) {
		sess := testutil.CreateSession(t, env.sessRepo, "Beginner Tuesdays", startsAt, 10, 1500)
		bkg, err := env.svc.Submit(ctx, booking.NewBooking{RequesterID: requesterID, SessionID: sess.ID})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		return sess, bkg
	}

	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t)
		sess, bkg := submit(t, env, "swimmer", startsAt)

		if err := env.svc.Cancel(ctx, bkg.ID, "swimmer"); err != nil {
			t.Fatalf("Cancel() failed: %v", err)
		}
		bkg, _ = env.svc.GetByID(ctx, bkg.ID)
		if bkg.Status != booking.StatusCancelled {
			t.Errorf("Status = %v, want %v", bkg.Status, booking.StatusCancelled)
		}
		// approval axis is untouched
		if bkg.EnrollmentStatus != booking.EnrollmentPending {
			t.Errorf("EnrollmentStatus = %v, want %v", bkg.EnrollmentStatus, booking.EnrollmentPending)
		}
		sess, _ = env.sessSvc.GetByID(ctx, sess.ID)
		if sess.EnrolledCount != 0 {
			t.Errorf("EnrolledCount = %d, want 0", sess.EnrolledCount)
		}
		if evts := env.bus.EventsByKey(booking.EventCancelled); len(evts) != 1 {
			t.Errorf("got %d %q events, want 1", len(evts), booking.EventCancelled)
		}
	})

	t.Run("not the requester", func(t *testing.T) {
		env := newTestEnv(t)
		_, bkg := submit(t, env, "swimmer", startsAt)

		if err := env.svc.Cancel(ctx, bkg.ID, "someone else"); err != booking.ErrNotFound {
			t.Errorf("Cancel() error = %v, want %v", err, booking.ErrNotFound)
		}
	})

	t.Run("already cancelled", func(t *testing.T) {
		env := newTestEnv(t)
		_, bkg := submit(t, env, "swimmer", startsAt)

		if err := env.svc.Cancel(ctx, bkg.ID, "swimmer"); err != nil {
			t.Fatalf("Cancel() failed: %v", err)
		}
		if err := env.svc.Cancel(ctx, bkg.ID, "swimmer"); err != booking.ErrInvalidTransition {
			t.Errorf("second Cancel() error = %v, want %v", err, booking.ErrInvalidTransition)
		}
	})

	t.Run("window closed", func(t *testing.T) {
		env := newTestEnv(t)
		_, bkg := submit(t, env, "swimmer", startsAt)

		// 23h before the session starts, 24h cutoff
		booking.NowFunc = func() time.Time { return startsAt.Add(-23 * time.Hour) }
		defer func() { booking.NowFunc = time.Now }()

		if err := env.svc.Cancel(ctx, bkg.ID, "swimmer"); err != booking.ErrCancellationWindowClosed {
			t.Errorf("Cancel() error = %v, want %v", err, booking.ErrCancellationWindowClosed)
		}
	})

	t.Run("window still open", func(t *testing.T) {
		env := newTestEnv(t)
		_, bkg := submit(t, env, "swimmer", startsAt)

		booking.NowFunc = func() time.Time { return startsAt.Add(-25 * time.Hour) }
		defer func() { booking.NowFunc = time.Now }()

		if err := env.svc.Cancel(ctx, bkg.ID, "swimmer"); err != nil {
			t.Errorf("Cancel() failed: %v", err)
		}
	})

	t.Run("exactly at cutoff", func(t *testing.T) {
		env := newTestEnv(t)
		_, bkg := submit(t, env, "swimmer", startsAt)

		booking.NowFunc = func() time.Time { return startsAt.Add(-24 * time.Hour) }
		defer func() { booking.NowFunc = time.Now }()

		if err := env.svc.Cancel(ctx, bkg.ID, "swimmer"); err != booking.ErrCancellationWindowClosed {
			t.Errorf("Cancel() error = %v, want %v", err, booking.ErrCancellationWindowClosed)
		}
	})
}

// failingRepo fails selected writes to exercise partial failure reporting.
type failingRepo struct {
	booking.Repository
	failPayment      bool
	failNotification bool
}

var errBoom = errors.New("boom")

func (r *failingRepo) CreatePayment(ctx context.Context, p booking.Payment) (booking.Payment, error) {
	if r.failPayment {
		return booking.Payment{}, errBoom
	}
	return r.Repository.CreatePayment(ctx, p)
}

func (r *failingRepo) CreateNotification(ctx context.Context, n booking.Notification) (booking.Notification, error) {
	if r.failNotification {
		return booking.Notification{}, errBoom
	}
	return r.Repository.CreateNotification(ctx, n)
}

func TestService_Submit_partialFailure(t *testing.T) {
	ctx := context.Background()
	startsAt := time.Now().UTC().Add(7 * 24 * time.Hour)

	tests := []struct {
		name      string
		repo      func(booking.Repository) booking.Repository
		wantKinds []string
	}{
		{
			name:      "payment write fails",
			repo:      func(r booking.Repository) booking.Repository { return &failingRepo{Repository: r, failPayment: true} },
			wantKinds: []string{"seat", "booking"},
		},
		{
			name:      "notification write fails",
			repo:      func(r booking.Repository) booking.Repository { return &failingRepo{Repository: r, failNotification: true} },
			wantKinds: []string{"seat", "booking", "payment"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := inmemdb.Open()
			if err != nil {
				t.Fatalf("inmemdb.Open() failed: %v", err)
			}
			conf := testutil.NewTestConfig()
			bus := bussvc.NewInProcBus()
			sessRepo := inmemdb.NewSessionRepository(db)
			sessSvc := session.NewService(sessRepo, bus)
			svc := booking.NewService(
				tt.repo(inmemdb.NewBookingRepository(db)), sessSvc, emailsvc.NewConsoleServiceMock(conf), bus, conf,
			)
			sess := testutil.CreateSession(t, sessRepo, "Beginner Tuesdays", startsAt, 10, 1500)

			_, err = svc.Submit(ctx, booking.NewBooking{RequesterID: "swimmer", SessionID: sess.ID})

			var pfErr *booking.PartialFailureError
			if !errors.As(err, &pfErr) {
				t.Fatalf("Submit() error = %v, want *PartialFailureError", err)
			}
			if len(pfErr.Artifacts) != len(tt.wantKinds) {
				t.Fatalf("got %d artifacts, want %d", len(pfErr.Artifacts), len(tt.wantKinds))
			}
			for i, kind := range tt.wantKinds {
				if pfErr.Artifacts[i].Kind != kind {
					t.Errorf("artifact[%d].Kind = %v, want %v", i, pfErr.Artifacts[i].Kind, kind)
				}
				if pfErr.Artifacts[i].ID == "" {
					t.Errorf("artifact[%d].ID is empty", i)
				}
			}
			if !errors.Is(err, errBoom) {
				t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), errBoom)
			}
		})
	}
}
