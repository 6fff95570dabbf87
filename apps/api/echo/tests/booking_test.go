package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	. "github.com/nageo/backend/apps/api/echo"
	"github.com/nageo/backend/core/booking"
	"github.com/nageo/backend/core/user"
	testutil "github.com/nageo/backend/tests"
)

func submitBooking(t *testing.T, token, sessionID string, wantCode int) booking.Booking {
	t.Helper()

	body := marchallObj(t, map[string]string{"session_id": sessionID})
	req, rec := newAuthRequest(http.MethodPost, "/v1/bookings", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("submit code = %v; want %v; body %s", rec.Code, wantCode, rec.Body.String())
	}

	var bkg booking.Booking
	if wantCode == http.StatusCreated {
		if err := json.Unmarshal(rec.Body.Bytes(), &bkg); err != nil {
			t.Fatalf("unmarshalling booking: %v", err)
		}
	}
	return bkg
}

func Test_bookingApi_submit(t *testing.T) {
	resetDB(t)

	swimmer1 := testutil.CreateUser(t, usrRepo, "One", "one", "one@test.fr", "", user.SwimmerRoles, true)
	swimmer2 := testutil.CreateUser(t, usrRepo, "Two", "two", "two@test.fr", "", user.SwimmerRoles, true)
	token1 := getToken(t, swimmer1)
	token2 := getToken(t, swimmer2)

	sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(48*time.Hour), 1, 1500)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/bookings", marchallObj(t, map[string]string{"session_id": sess.ID}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("unknown session", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"session_id": "nope"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings", token1, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "booking not found"})}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		bkg := submitBooking(t, token1, sess.ID, http.StatusCreated)
		if bkg.RequesterID != swimmer1.ID {
			t.Errorf("RequesterID = %v; want %v", bkg.RequesterID, swimmer1.ID)
		}
		if bkg.Status != booking.StatusConfirmed {
			t.Errorf("Status = %v; want %v", bkg.Status, booking.StatusConfirmed)
		}
		if bkg.EnrollmentStatus != booking.EnrollmentPending {
			t.Errorf("EnrollmentStatus = %v; want %v", bkg.EnrollmentStatus, booking.EnrollmentPending)
		}
	})

	t.Run("session full", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"session_id": sess.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings", token2, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "session is full"})}, rec)
	})
}

func Test_bookingApi_visibility(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.fr", "", user.AdminRoles, true)
	swimmer1 := testutil.CreateUser(t, usrRepo, "One", "one", "one@test.fr", "", user.SwimmerRoles, true)
	swimmer2 := testutil.CreateUser(t, usrRepo, "Two", "two", "two@test.fr", "", user.SwimmerRoles, true)
	adminToken := getToken(t, admin)
	token1 := getToken(t, swimmer1)
	token2 := getToken(t, swimmer2)

	sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(48*time.Hour), 10, 1500)
	bkg1 := submitBooking(t, token1, sess.ID, http.StatusCreated)
	bkg2 := submitBooking(t, token2, sess.ID, http.StatusCreated)

	listLen := func(t *testing.T, token, path string) []booking.Booking {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var bookings []booking.Booking
		if err := json.Unmarshal(rec.Body.Bytes(), &bookings); err != nil {
			t.Fatalf("unmarshalling bookings: %v", err)
		}
		return bookings
	}

	t.Run("swimmers only see their own", func(t *testing.T) {
		bookings := listLen(t, token1, "/v1/bookings")
		if len(bookings) != 1 || bookings[0].ID != bkg1.ID {
			t.Errorf("bookings = %+v; want just %v", bookings, bkg1.ID)
		}
		// a foreign requester_id filter is overridden
		bookings = listLen(t, token1, "/v1/bookings?requester_id="+swimmer2.ID)
		if len(bookings) != 1 || bookings[0].ID != bkg1.ID {
			t.Errorf("bookings = %+v; want just %v", bookings, bkg1.ID)
		}
	})

	t.Run("admins see all", func(t *testing.T) {
		if bookings := listLen(t, adminToken, "/v1/bookings"); len(bookings) != 2 {
			t.Errorf("len(bookings) = %v; want 2", len(bookings))
		}
	})

	t.Run("foreign detail is a 404", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/bookings/"+bkg2.ID, token1)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("admin detail", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/bookings/"+bkg2.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusOK)
		}
	})
}

func Test_bookingApi_review(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.fr", "", user.AdminRoles, true)
	swimmer := testutil.CreateUser(t, usrRepo, "One", "one", "one@test.fr", "", user.SwimmerRoles, true)
	adminToken := getToken(t, admin)
	token := getToken(t, swimmer)

	sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(48*time.Hour), 10, 1500)
	bkg := submitBooking(t, token, sess.ID, http.StatusCreated)

	t.Run("swimmers cannot review", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/approve", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("unknown booking", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/nope/approve", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "booking not found"})}, rec)
	})

	t.Run("approve", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"notes": "payment received"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/approve", adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Booking approved."})}, rec)

		// payment is settled
		req, rec = newAuthRequest(http.MethodGet, "/v1/bookings/"+bkg.ID+"/payment", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rec.Code, http.StatusOK)
		}
		var pmt booking.Payment
		if err := json.Unmarshal(rec.Body.Bytes(), &pmt); err != nil {
			t.Fatalf("unmarshalling payment: %v", err)
		}
		if pmt.Status != booking.PaymentPaid {
			t.Errorf("payment Status = %v; want %v", pmt.Status, booking.PaymentPaid)
		}
		if !pmt.AdminVerified {
			t.Error("payment AdminVerified = false; want true")
		}
	})

	t.Run("already resolved", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/reject", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "booking is not awaiting review"})}, rec)
	})
}

func Test_bookingApi_cancel(t *testing.T) {
	resetDB(t)

	swimmer := testutil.CreateUser(t, usrRepo, "One", "one", "one@test.fr", "", user.SwimmerRoles, true)
	other := testutil.CreateUser(t, usrRepo, "Two", "two", "two@test.fr", "", user.SwimmerRoles, true)
	token := getToken(t, swimmer)
	otherToken := getToken(t, other)

	t.Run("ok", func(t *testing.T) {
		sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(48*time.Hour), 10, 1500)
		bkg := submitBooking(t, token, sess.ID, http.StatusCreated)

		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/cancel", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Booking cancelled."})}, rec)

		// cancelling again conflicts
		req, rec = newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/cancel", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "booking is not awaiting review"})}, rec)
	})

	t.Run("not the requester", func(t *testing.T) {
		sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(48*time.Hour), 10, 1500)
		bkg := submitBooking(t, token, sess.ID, http.StatusCreated)

		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/cancel", otherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "booking not found"})}, rec)
	})

	t.Run("window closed", func(t *testing.T) {
		sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(time.Hour), 10, 1500)
		bkg := submitBooking(t, token, sess.ID, http.StatusCreated)

		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/cancel", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "cancellation window has closed"})}, rec)
	})
}

func Test_bookingApi_notifications(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.fr", "", user.AdminRoles, true)
	swimmer := testutil.CreateUser(t, usrRepo, "One", "one", "one@test.fr", "", user.SwimmerRoles, true)
	adminToken := getToken(t, admin)
	token := getToken(t, swimmer)

	sess := testutil.CreateSession(t, sessRepo, "Beginner", time.Now().UTC().Add(48*time.Hour), 10, 1500)
	bkg := submitBooking(t, token, sess.ID, http.StatusCreated)

	t.Run("swimmers cannot list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("submit raises an unread alert", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications?unread=true", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rec.Code, http.StatusOK)
		}
		var notifs []booking.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &notifs); err != nil {
			t.Fatalf("unmarshalling notifications: %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("len(notifs) = %v; want 1", len(notifs))
		}
		if notifs[0].BookingID != bkg.ID {
			t.Errorf("BookingID = %v; want %v", notifs[0].BookingID, bkg.ID)
		}
		if notifs[0].Read {
			t.Error("Read = true; want false")
		}
	})

	t.Run("approval clears the alert", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/bookings/"+bkg.ID+"/approve", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/notifications?unread=true", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rec.Code, http.StatusOK)
		}
		var notifs []booking.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &notifs); err != nil {
			t.Fatalf("unmarshalling notifications: %v", err)
		}
		if len(notifs) != 0 {
			t.Errorf("len(notifs) = %v; want 0", len(notifs))
		}
	})
}
