package main

import (
	"context"
	"log"
	"os"

	"github.com/ramesh-perabattula/EduPay/core"
	"github.com/ramesh-perabattula/EduPay/core/analytics"
	"github.com/ramesh-perabattula/EduPay/core/assignment"
	"github.com/ramesh-perabattula/EduPay/core/promotion"
	emailsvc "github.com/ramesh-perabattula/EduPay/services/email"
	logsvc "github.com/ramesh-perabattula/EduPay/services/logger"
	"github.com/ramesh-perabattula/EduPay/storage/database"
	sqlxrepos "github.com/ramesh-perabattula/EduPay/storage/database/sqlx"
)

// waiter is implemented by the email services sending in the background.
type waiter interface {
	Wait()
}

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err = database.Ping(context.Background(), db); err != nil {
		logger.Fatal("pinging database", err)
	}
	repo := sqlxrepos.NewLedgerRepository(db)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		db:           db.DB,
		assignSvc:    assignment.NewService(repo, conf, logger),
		promotionSvc: promotion.NewService(repo, conf, logger),
		analyticsSvc: analytics.NewService(repo),
		mailSvc:      mailSvc,
		out:          os.Stdout,
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error("admin command failed", err)
	}

	if w, ok := mailSvc.(waiter); ok {
		w.Wait()
	}
	logger.Close()
	_ = db.Close()
	if err != nil {
		os.Exit(1)
	}
}
