// Command importer loads benches from a CSV file into the database.
//
//	importer [-batch 500] benches.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/baenkli/internal/adapters/nats"
	"github.com/samirrijal/baenkli/internal/adapters/postgres"
	"github.com/samirrijal/baenkli/internal/adapters/valkey"
	"github.com/samirrijal/baenkli/internal/core/ports"
	"github.com/samirrijal/baenkli/internal/core/usecases"
	"github.com/samirrijal/baenkli/internal/importer"
	"github.com/samirrijal/baenkli/internal/pkg/config"
	"github.com/samirrijal/baenkli/internal/pkg/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code, so every deferred close, including the
// NATS drain, has happened by the time main exits.
func run(args []string, stderr io.Writer) int {
	batch, path, err := parseArgs(args, stderr)
	if err != nil {
		return exitUsage
	}

	cfg, err := config.Load("baenkli-importer")
	if err != nil {
		log.Printf("config: %v", err)
		return exitError
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		return exitError
	}
	defer db.Close()

	// Running API instances drop their cached list and refresh open boards.
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix); err != nil {
		logger.Warn("valkey unavailable, cached lists expire on their own", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}
	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		logger.Warn("nats unavailable, no import events", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	svc := usecases.NewBenchService(postgres.NewBenchRepo(db.Pool), nil, cache, events)
	return importFile(ctx, svc, path, batch, logger)
}

func parseArgs(args []string, stderr io.Writer) (batch int, path string, err error) {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&batch, "batch", importer.DefaultBatchSize, "benches per insert batch")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: importer [-batch N] <file.csv>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 0, "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 0, "", errors.New("expected exactly one file")
	}
	return batch, fs.Arg(0), nil
}

// importFile streams path into sink and logs the outcome.
func importFile(ctx context.Context, sink importer.Sink, path string, batch int, logger *slog.Logger) int {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("cannot open import file", "file", path, "error", err)
		return exitError
	}
	defer f.Close()

	report, runErr := importer.New(sink, batch, logger).Run(ctx, f)
	for _, skipped := range report.Skipped {
		logger.Warn("row skipped", "file", path, "line", skipped.Line, "error", skipped.Err)
	}
	logger.Info("import finished",
		"file", path,
		"rows", report.Rows,
		"imported", report.Imported,
		"skipped", len(report.Skipped),
	)
	if runErr != nil {
		logger.Error("import aborted", "error", runErr)
		return exitError
	}
	return exitOK
}
