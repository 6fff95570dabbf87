package main

import (
	"context"

	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/user"
)

// addUser creates an active account, or refreshes the password and roles
// of an existing one. -admin grants the full role set.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	switch err {
	case nil:
	case user.ErrNotFound:
		usr = user.User{Username: uname, Email: email}
	default:
		return err
	}

	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
