package session

import (
	"context"
	"errors"
	"time"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/schedule"
)

var (
	// errors
	ErrNotFound    = errors.New("session not found")
	ErrSessionFull = errors.New("session is full")
)

// event keys
const (
	EventCreated = "session.created"
)

type (
	Repository interface {
		// CreateSessions persists a batch of occurrences as one unit.
		CreateSessions(ctx context.Context, sessions []Session) ([]Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// QuerySessions applies AND operation on available QueryFilter fields.
		QuerySessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		// ReserveSeat atomically increments the enrolled count, failing with
		// ErrSessionFull when the session is at capacity.
		ReserveSeat(ctx context.Context, id string) error
		// ReleaseSeat atomically decrements the enrolled count, never below zero.
		ReleaseSeat(ctx context.Context, id string) error
		DeleteSessionsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CreateRecurring(ctx context.Context, ns NewSession) ([]Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		ReserveSeat(ctx context.Context, id string) error
		ReleaseSeat(ctx context.Context, id string) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
		bus  core.Broadcaster
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, bus core.Broadcaster) Service {
	return &service{repo: repo, bus: bus}
}

// CreateRecurring expands the recurrence rule of ns and persists one Session
// per occurrence date, ns.StartsAt included.
func (svc *service) CreateRecurring(ctx context.Context, ns NewSession) ([]Session, error) {
	dates, err := schedule.Expand(ns.StartsAt.UTC(), ns.Recurrence)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sessions := make([]Session, 0, len(dates))
	for _, d := range dates {
		sessions = append(sessions, Session{
			Name:         ns.Name,
			Level:        ns.Level,
			InstructorID: ns.InstructorID,
			StartsAt:     d,
			DurationMin:  ns.DurationMin,
			PriceCents:   ns.PriceCents,
			Currency:     ns.Currency,
			Capacity:     ns.Capacity,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	created, err := svc.repo.CreateSessions(ctx, sessions)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(created))
	for _, s := range created {
		ids = append(ids, s.ID)
	}
	_ = svc.bus.Broadcast(ctx, EventCreated, map[string]interface{}{
		"session_ids": ids,
		"name":        ns.Name,
	})
	return created, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "starts_at", Ascending: true}}
	}
	return svc.repo.QuerySessions(ctx, filter, ordering)
}

func (svc *service) ReserveSeat(ctx context.Context, id string) error {
	return svc.repo.ReserveSeat(ctx, id)
}

func (svc *service) ReleaseSeat(ctx context.Context, id string) error {
	return svc.repo.ReleaseSeat(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteSessionsByID(ctx, ids...)
}
