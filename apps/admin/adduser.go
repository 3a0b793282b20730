package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, email, name string, role user.Role, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	exists := err == nil
	if !exists {
		if errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "finding user by email")
		}
		usr = user.User{Email: email, CreatedAt: now}
	}
	if name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = strings.SplitN(email, "@", 2)[0]
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now

	if err = cli.checkPassword(usr.Name, usr.Email, pwd); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return errors.Wrap(err, "updating user")
	}
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return errors.Wrap(err, "creating user")
}
