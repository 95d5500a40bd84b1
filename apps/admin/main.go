package main

import (
	"log"
	"os"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/user"
	"github.com/coachingcentre/platform/storage/database"
	boiledrepos "github.com/coachingcentre/platform/storage/database/sqlboiler"
)

var logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		db:     db.DB,
		engine: conf.Database.Engine,
		usrSvc: user.NewService(boiledrepos.NewUserRepository(db)),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
