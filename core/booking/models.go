package booking

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/nageo/backend/core"
)

// Status is the operational axis of a booking. It is independent of the
// enrollment (admin approval) axis: an approved booking can still be
// cancelled by its requester without losing its approval.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// EnrollmentStatus is the admin approval axis. approved and rejected are
// terminal; no transition ever leaves them.
type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "pending"
	EnrollmentApproved EnrollmentStatus = "approved"
	EnrollmentRejected EnrollmentStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
)

type Booking struct {
	ID               string           `json:"id"`
	RequesterID      string           `json:"requester_id"`
	SessionID        string           `json:"session_id"`
	Status           Status           `json:"status"`
	EnrollmentStatus EnrollmentStatus `json:"enrollment_status"`
	Notes            string           `json:"notes"`
	CreatedAt        time.Time        `json:"created_at"` // UTC
	UpdatedAt        time.Time        `json:"updated_at"` // UTC
}

func (b Booking) IsPending() bool { return b.EnrollmentStatus == EnrollmentPending }

// Payment tracks the money side of a booking. BookingID is nullable:
// general payments (memberships, gear) exist without a booking.
type Payment struct {
	ID            string        `json:"id"`
	BookingID     null.String   `json:"booking_id,omitempty"`
	Amount        int64         `json:"amount"` // cents
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	AdminVerified bool          `json:"admin_verified"`
	Verified      bool          `json:"verified"`
	ApprovedAt    null.Time     `json:"approved_at,omitempty"`
	ApprovedBy    null.String   `json:"approved_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"` // UTC
	UpdatedAt     time.Time     `json:"updated_at"` // UTC
}

// Notification is an ephemeral admin alert, keyed by (type, booking id).
// It is created when a booking is submitted and marked read when the
// booking is resolved.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NotificationBookingRequest is the type of the alert raised for a new
// booking awaiting admin review.
const NotificationBookingRequest = "booking_request"

// NewBooking contains information needed to submit a booking request.
type NewBooking struct {
	RequesterID string `json:"-"`
	SessionID   string `json:"session_id" validate:"required"`
	Notes       string `json:"notes" validate:"max=1000"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.SessionID = core.CleanString(nb.SessionID)
	nb.Notes = core.CleanString(nb.Notes)
	return validate.Struct(nb)
}

type QueryFilter struct {
	RequesterID      string    `query:"requester_id"`
	SessionID        string    `query:"session_id"`
	Status           string    `query:"status"`
	EnrollmentStatus string    `query:"enrollment_status"`
	CreatedFrom      time.Time `query:"created_from"`
	CreatedTo        time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.RequesterID == "" && qf.SessionID == "" && qf.Status == "" &&
		qf.EnrollmentStatus == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

type PaymentQueryFilter struct {
	Status    string `query:"status"`
	BookingID string `query:"booking_id"`
}
