package main

import "context"

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoSQLDB
	}
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
