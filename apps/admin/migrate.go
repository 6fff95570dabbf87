package main

import "github.com/nageo/backend/storage/database"

var gooseRunFunc = database.Goose // mockable

// migrate hands the goose command and its trailing arguments over to the
// embedded migration runner.
func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
