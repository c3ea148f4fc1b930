package main

import (
	"flag"
	"os"

	"gitlab.com/dirk.krummacker/contacts/internal/config"
	"gitlab.com/dirk.krummacker/contacts/internal/logger"
	"gitlab.com/dirk.krummacker/contacts/internal/service"
)

// Usage example on the command line:
// > STORE_PATH=data/Database.sqlite go run main.go
// > STORE_DRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go -file=../../scripts/testdata.sql
func main() {
	filePtr := flag.String("file", "", "an additional sql file to execute after the schema")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	db, err := service.OpenDatabase(cfg.Store)
	if err != nil {
		log.Error("could not open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := service.Migrate(db); err != nil {
		log.Error("could not apply schema", "version", service.SchemaVersion, "error", err)
		os.Exit(1)
	}
	log.Info("schema is up to date", "version", service.SchemaVersion)

	if *filePtr == "" {
		return
	}
	readFile, err := os.Open(*filePtr) // nosemgrep
	if err != nil {
		log.Error("could not open sql file", "file", *filePtr, "error", err)
		os.Exit(1)
	}
	defer readFile.Close()
	if err := service.ExecScript(db, readFile); err != nil {
		log.Error("could not execute sql file", "file", *filePtr, "error", err)
		os.Exit(1)
	}
	log.Info("executed sql file", "file", *filePtr)
}
