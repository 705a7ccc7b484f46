package main

import (
	"fmt"
	"log"
	"os"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/enrollment"
	logsvc "github.com/masomo/lms/services/logger"
	"github.com/masomo/lms/storage/database"
	sqlxrepos "github.com/masomo/lms/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf: conf,
		db:   db,
		enrollmentSvc: enrollment.NewService(
			db,
			sqlxrepos.NewEnrollmentRepository(db),
			sqlxrepos.NewProgressRepository(db),
			sqlxrepos.NewCatalogReader(db),
			logger,
		),
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
