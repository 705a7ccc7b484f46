package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/enrollment"
	"github.com/masomo/lms/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf          *core.Config
	db            *sqlx.DB
	enrollmentSvc enrollment.Service
	out           io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                  - run a goose command (up, up-to, down, status, ...) on the embedded migrations")
	fmt.Fprintln(cli.out, "  recalculate -enrollment ID | -course ID - recompute the stored progress after course content changed")
	fmt.Fprintln(cli.out, "  token -user ID [-role ROLE]             - issue an API token")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	recalculateCmd := cli.newFlagSet("recalculate")
	recalculateEnrollment := recalculateCmd.String("enrollment", "", "The enrollment to recalculate.")
	recalculateCourse := recalculateCmd.String("course", "", "The course whose enrollments are recalculated.")

	tokenCmd := cli.newFlagSet("token")
	tokenUser := tokenCmd.String("user", "", "The user ID (token subject).")
	tokenRole := tokenCmd.String("role", user.RoleStudent, "The user's role, one of: "+strings.Join(user.AllRoles, ", ")+".")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "recalculate":
		if err := cli.parse(recalculateCmd, args[2:]); err != nil {
			return err
		}
		// exactly one of -enrollment, -course
		if (*recalculateEnrollment == "") == (*recalculateCourse == "") {
			recalculateCmd.Usage()
			return errHelp
		}
		return cli.recalculate(*recalculateEnrollment, *recalculateCourse)
	case "token":
		if err := cli.parse(tokenCmd, args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUser, *tokenRole)
	default:
		cli.printUsage()
		return errHelp
	}
}
