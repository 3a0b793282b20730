package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/assets"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
	"github.com/trezcool/masomo-lms/storage/database"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-lms/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, logger)

	// set up DB & repos
	var (
		sqlDB   *sql.DB
		usrRepo user.Repository
	)
	if conf.Database.InMemory() {
		logger.Warn("using the in-memory database: changes are lost on exit")
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	} else {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		sqlDB = db.DB
		usrRepo = sqlxrepos.NewUserRepository(db)
	}

	// start CLI
	cli := commandLine{
		db:         sqlDB,
		usrRepo:    usrRepo,
		validate:   validate,
		translator: translator,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err))
		}
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		os.Exit(1)
	}
}
