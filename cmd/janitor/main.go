// Command janitor removes bench photos that no bench references.
//
//	janitor worker                 run the Temporal worker
//	janitor sweep [-cron EXPR]     start a sweep, or a recurring one
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	minioadapter "github.com/samirrijal/baenkli/internal/adapters/minio"
	"github.com/samirrijal/baenkli/internal/adapters/postgres"
	"github.com/samirrijal/baenkli/internal/pkg/config"
	"github.com/samirrijal/baenkli/internal/pkg/logging"
	"github.com/samirrijal/baenkli/internal/workflows"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: janitor <worker|sweep> [flags]")
	}

	cfg, err := config.Load("baenkli-janitor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(cfg, c)
	case "sweep":
		startSweep(cfg, c, os.Args[2:])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runWorker(cfg *config.Config, c client.Client) {
	if err := cfg.Storage.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	photos, err := minioadapter.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.OrphanSweepWorkflow)
	w.RegisterActivity(&workflows.SweepActivities{
		Benches: postgres.NewBenchRepo(db.Pool),
		Photos:  photos,
	})

	slog.Info("janitor worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startSweep(cfg *config.Config, c client.Client, args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	cron := fs.String("cron", "", "cron schedule, e.g. \"0 3 * * *\"; empty runs once and waits")
	prefix := fs.String("prefix", "", "only consider keys with this prefix")
	_ = fs.Parse(args)

	opts := client.StartWorkflowOptions{
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: *cron,
	}
	if *cron != "" {
		// one schedule per task queue; starting it again is rejected
		opts.ID = "orphan-photo-sweep"
	} else {
		opts.ID = fmt.Sprintf("orphan-photo-sweep-%d", time.Now().Unix())
	}

	input := workflows.SweepInput{Prefix: *prefix, MinAge: cfg.Janitor.MinAge}
	run, err := c.ExecuteWorkflow(context.Background(), opts, workflows.OrphanSweepWorkflowName, input)
	if err != nil {
		log.Fatalf("start sweep: %v", err)
	}
	slog.Info("sweep started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "cron", *cron)
	if *cron != "" {
		return
	}

	var result workflows.SweepResult
	if err := run.Get(context.Background(), &result); err != nil {
		log.Fatalf("sweep: %v", err)
	}
	slog.Info("sweep finished", "scanned", result.Scanned, "referenced", result.Referenced, "removed", result.Removed)
}
