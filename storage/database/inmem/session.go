package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) query() []session.Session {
	sessions := make([]session.Session, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		sessions = append(sessions, *s)
	}
	return sessions
}

func (repo *sessionRepository) CreateSessions(ctx context.Context, sessions []session.Session) ([]session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]session.Session, 0, len(sessions))
	for _, sess := range sessions {
		sess := sess
		sess.ID = uuid.New().String()
		repo.db.table[sess.ID] = &sess
		created = append(created, sess)
	}
	return created, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := repo.query()
	if filter != nil && !filter.IsEmpty() {
		sessions = filterSessions(sessions, filter)
	}
	sortSessions(sessions, ordering)
	return sessions, nil
}

func filterSessions(sessions []session.Session, filter *session.QueryFilter) []session.Session {
	if !filter.From.IsZero() {
		var filtered []session.Session
		timeUTC := filter.From.UTC()
		for _, s := range sessions {
			if s.StartsAt.Equal(timeUTC) || s.StartsAt.After(timeUTC) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && !filter.To.IsZero() {
		var filtered []session.Session
		timeUTC := filter.To.UTC()
		for _, s := range sessions {
			if s.StartsAt.Before(timeUTC) || s.StartsAt.Equal(timeUTC) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && filter.Level != "" {
		var filtered []session.Session
		for _, s := range sessions {
			if s.Level == filter.Level {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && filter.InstructorID != "" {
		var filtered []session.Session
		for _, s := range sessions {
			if s.InstructorID == filter.InstructorID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	return sessions
}

func sortSessions(sessions []session.Session, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0]
	sort.SliceStable(sessions, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "name":
			less = sessions[i].Name < sessions[j].Name
		case "created_at":
			less = sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		default: // starts_at
			less = sessions[i].StartsAt.Before(sessions[j].StartsAt)
		}
		if ord.Ascending {
			return less
		}
		return !less
	})
}

func (repo *sessionRepository) ReserveSeat(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.ErrNotFound
	}
	if sess.EnrolledCount >= sess.Capacity {
		return session.ErrSessionFull
	}
	sess.EnrolledCount++
	return nil
}

func (repo *sessionRepository) ReleaseSeat(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.ErrNotFound
	}
	if sess.EnrolledCount > 0 {
		sess.EnrolledCount--
	}
	return nil
}

func (repo *sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
