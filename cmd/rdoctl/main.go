// Command rdoctl runs maintenance tasks against the report store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"obra-rdo/internal/config"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/service"
	"obra-rdo/internal/storage"
	"obra-rdo/internal/store"
)

const usage = `usage: rdoctl [-config file] <command> [flags]

commands:
  bootstrap        create the admin account if no users exist
  normalize-dates  rewrite report dates as YYYY-MM-DD
  renumber-check   report duplicate and missing RDO numbers
  export-xlsx      write every report to a spreadsheet (-out file)
  migrate          copy the JSON file store into the configured SQL store
`

type env struct {
	cfg     *config.Config
	stores  *store.Stores
	reports *service.ReportService
}

func main() {
	configFile := flag.String("config", "", "config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load(*configFile)
	logger.Init(config.LogConfig{Level: cfg.Log.Level, Console: true})
	ctx := context.Background()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "migrate" {
		if err := migrate(ctx, cfg); err != nil {
			log.Fatal("migrate failed: ", err)
		}
		return
	}

	backend, err := store.OpenBackend(cfg)
	if err != nil {
		log.Fatal(err)
	}
	files, err := storage.NewAttachments(cfg.Storage.AttachmentsDir)
	if err != nil {
		log.Fatal(err)
	}
	stores := store.NewStores(backend)
	e := env{cfg: cfg, stores: stores, reports: service.NewReportService(stores, files)}

	switch cmd {
	case "bootstrap":
		err = bootstrap(ctx, e)
	case "normalize-dates":
		err = normalizeDates(ctx, e)
	case "renumber-check":
		err = renumberCheck(ctx, e)
	case "export-xlsx":
		err = exportXLSX(ctx, e, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}
