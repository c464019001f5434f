package main

import (
	"log"
	"net/http"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
	"github.com/trezcool/usajili/core/student"
	emailsvc "github.com/trezcool/usajili/services/email"
	"github.com/trezcool/usajili/services/genai"
	logsvc "github.com/trezcool/usajili/services/logger"
	"github.com/trezcool/usajili/storage/database"
	sqlxrepos "github.com/trezcool/usajili/storage/database/sqlx"
)

func main() {
	conf := core.Conf
	logger := logsvc.New("ADMIN : ", conf, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cli := commandLine{
		conf:       conf,
		out:        os.Stdout,
		genai:      genai.New(conf.GenAI),
		httpClient: &http.Client{Timeout: smokeTimeout},
		connect: func(cli *commandLine) error {
			db, err := database.Open(conf)
			if err != nil {
				return errors.Wrap(err, "opening database")
			}
			cli.db = db
			// operator commands do not notify anyone
			tray := notify.NewTray(nil, logger, conf.Notify.MaxToasts)
			cli.studentSvc = student.NewService(sqlxrepos.NewStudentRepository(db), emailsvc.NewConsoleService(conf, logger), tray)
			return nil
		},
	}

	err := cli.run(os.Args)
	if cli.db != nil {
		if cErr := cli.db.Close(); cErr != nil {
			logger.Error("closing database", cErr)
		}
	}
	if err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
