package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/schedule"
)

// Levels a session can be taught at.
const (
	LevelBaby         = "baby"
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelAquagym      = "aquagym"
)

var AllLevels = []string{LevelBaby, LevelBeginner, LevelIntermediate, LevelAdvanced, LevelAquagym}

// Session is one concrete swim class occurrence. Sessions are created in
// batches by expanding a recurrence rule; once created, an occurrence is
// independent of its siblings.
type Session struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Level         string    `json:"level"`
	InstructorID  string    `json:"instructor_id"`
	StartsAt      time.Time `json:"starts_at"` // UTC
	DurationMin   int       `json:"duration_min"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	Capacity      int       `json:"capacity"`
	EnrolledCount int       `json:"enrolled_count"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

func (s Session) SeatsLeft() int { return s.Capacity - s.EnrolledCount }

// NewSession contains information needed to create one or more Sessions:
// a template plus the recurrence rule to expand it with.
type NewSession struct {
	Name         string        `json:"name" validate:"required"`
	Level        string        `json:"level" validate:"required,level"`
	InstructorID string        `json:"instructor_id" validate:"required"`
	StartsAt     time.Time     `json:"starts_at" validate:"required"`
	DurationMin  int           `json:"duration_min" validate:"required,min=15,max=240"`
	PriceCents   int64         `json:"price_cents" validate:"min=0"`
	Currency     string        `json:"currency"`
	Capacity     int           `json:"capacity" validate:"required,min=1,max=100"`
	Recurrence   schedule.Rule `json:"recurrence"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Level = core.CleanString(ns.Level, true /* lower */)
	if ns.Currency == "" {
		ns.Currency = "EUR"
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return ns.Recurrence.Validate()
}

type QueryFilter struct {
	From         time.Time `query:"from"`
	To           time.Time `query:"to"`
	Level        string    `query:"level"`
	InstructorID string    `query:"instructor_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.From.IsZero() && qf.To.IsZero() && qf.Level == "" && qf.InstructorID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.InstructorID = core.CleanString(qf.InstructorID)
}
