package main

import (
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/masomo/lms/apps/api/echo"
	"github.com/masomo/lms/core/user"
)

func (cli *commandLine) token(userID, role string) error {
	if !user.IsValidRole(role) {
		return fmt.Errorf("%q: unknown role", role)
	}

	claims := echoapi.GetUserClaims(cli.conf, user.Actor{UserID: userID, Role: role})
	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
