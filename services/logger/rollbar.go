package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/user"
)

// RollbarLogger reports to Rollbar and echoes every entry to a standard
// logger so local output survives when reporting is disabled.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.Debug, msg, args) }

func (l RollbarLogger) Info(msg string, args ...interface{}) { l.report(rollbar.Info, msg, args) }

func (l RollbarLogger) Warn(msg string, args ...interface{}) { l.report(rollbar.Warning, msg, args) }

func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.Error, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.Critical, msg, args)
	l.std.Fatal(msg)
}

func (l RollbarLogger) report(send func(...interface{}), msg string, args []interface{}) {
	send(l.withPerson(msg, args)...)

	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

// withPerson pulls the first user.User out of args and attaches it to the
// Rollbar item as the affected person. Remaining args pass through as extras.
func (l RollbarLogger) withPerson(msg string, args []interface{}) []interface{} {
	items := make([]interface{}, 0, len(args)+1)
	items = append(items, msg)

	var usrSet bool
	for _, arg := range args {
		usr, ok := arg.(user.User)
		if ok && !usrSet {
			rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
			usrSet = true
			continue
		}
		items = append(items, arg)
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return items
}
