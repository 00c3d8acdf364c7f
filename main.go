package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/pharmabridge/pharmsync/internal/config"
	"github.com/pharmabridge/pharmsync/internal/db"
	"github.com/pharmabridge/pharmsync/internal/ingest"
	"github.com/pharmabridge/pharmsync/internal/logs"

	// vendor bundle registration
	_ "github.com/pharmabridge/pharmsync/internal/vendors/lgpi"
	_ "github.com/pharmabridge/pharmsync/internal/vendors/smartrx"
	_ "github.com/pharmabridge/pharmsync/internal/vendors/winpharma"
)

var ver = "1.0.0"

func main() {
	cfgPath := flag.String("config", "config.json", "path to config.json")
	flag.Parse()

	cfg, firstRun, err := conf.LoadOrCreate(*cfgPath)
	if err != nil {
		panic(err)
	}

	log := logs.New(cfg.LogFile, cfg.Console)
	if firstRun {
		log.Info().Str("path", *cfgPath).Msg("default configuration written")
	}

	dbh, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("DB open error")
	}
	if err := dbh.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("DB migrate error")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("DB ready")
	sqlDB, _ := dbh.DB.DB()
	defer sqlDB.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("version", ver).Msg("pharmsync started")

	r := ingest.NewRunner(log, cfg.Ingest, dbh.DB)
	if err := r.Start(ctx); err != nil {
		log.Error().Err(err).Msg("runner exited with error")
	}
}
