package inmemdb

import (
	"sync"

	"github.com/nageo/backend/core/booking"
	"github.com/nageo/backend/core/session"
	"github.com/nageo/backend/core/user"
)

type (
	DB struct {
		user         *userTable
		session      *sessionTable
		booking      *bookingTable
		payment      *paymentTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	bookingTable struct {
		sync.RWMutex
		table map[string]*booking.Booking
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*booking.Payment
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*booking.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		session:      &sessionTable{table: make(map[string]*session.Session)},
		booking:      &bookingTable{table: make(map[string]*booking.Booking)},
		payment:      &paymentTable{table: make(map[string]*booking.Payment)},
		notification: &notificationTable{table: make(map[string]*booking.Notification)},
	}
	return db, nil
}

// Reset drops all rows. Test helper.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.session.Lock()
	db.session.table = make(map[string]*session.Session)
	db.session.Unlock()

	db.booking.Lock()
	db.booking.table = make(map[string]*booking.Booking)
	db.booking.Unlock()

	db.payment.Lock()
	db.payment.table = make(map[string]*booking.Payment)
	db.payment.Unlock()

	db.notification.Lock()
	db.notification.table = make(map[string]*booking.Notification)
	db.notification.Unlock()
}
