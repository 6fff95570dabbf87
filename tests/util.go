package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/booking"
	"github.com/nageo/backend/core/session"
	"github.com/nageo/backend/core/user"
)

// NewTestConfig returns a Config suitable for tests, no env loading involved.
func NewTestConfig() *core.Config {
	return &core.Config{
		Debug:                     false,
		TestMode:                  true,
		Env:                       "TEST",
		AppName:                   "Nageo",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		CancellationCutoff:        24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        4 * time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSession(
	t *testing.T,
	repo session.Repository,
	name string,
	startsAt time.Time,
	capacity int,
	priceCents int64,
) session.Session {
	t.Helper()

	now := time.Now().UTC()
	sessions, err := repo.CreateSessions(context.Background(), []session.Session{{
		Name:        name,
		Level:       session.LevelBeginner,
		StartsAt:    startsAt.UTC(),
		DurationMin: 45,
		PriceCents:  priceCents,
		Currency:    "EUR",
		Capacity:    capacity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sessions[0]
}

func CreateBooking(
	t *testing.T,
	repo booking.Repository,
	requesterID, sessionID string,
) booking.Booking {
	t.Helper()

	now := time.Now().UTC()
	bkg, err := repo.CreateBooking(context.Background(), booking.Booking{
		RequesterID:      requesterID,
		SessionID:        sessionID,
		Status:           booking.StatusConfirmed,
		EnrollmentStatus: booking.EnrollmentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("CreateBooking() failed: %v", err)
	}
	return bkg
}
