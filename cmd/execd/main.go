// Command execd is the execution core's CLI entrypoint: load config, open
// and migrate the database, wire every component together, run crash
// recovery, then serve. Mirrors the teacher's cmd/main.go load-config →
// open-db → migrate → construct-services → run shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"station/internal/approval"
	"station/internal/config"
	"station/internal/db"
	"station/internal/db/repositories"
	"station/internal/events"
	"station/internal/gitservice"
	"station/internal/images"
	"station/internal/logging"
	"station/internal/orchestrator"
	"station/internal/queuedfollowup"
	"station/internal/registry"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "execd",
		Short: "Coding-agent execution core",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("execd: %v", err))
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.Initialize(os.Getenv("STATION_DEBUG") != "")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	repos := repositories.New(database)
	reg := registry.New()
	bus := events.NewBus()
	defer bus.Close()

	approvals := approval.New(repos.Approvals, bus, cfg.DefaultApprovalTimeout)
	followups := queuedfollowup.New()
	git := gitservice.New()

	imageStore, err := images.NewDiskStore(cfg.ImageStoreRoot)
	if err != nil {
		return fmt.Errorf("open image store: %w", err)
	}
	_ = images.NewService(imageStore, repos.Images)

	orch := orchestrator.New(repos, reg, approvals, followups, git, bus)
	orch.AutoCommit = cfg.AutoCommit

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recovered, err := orch.RecoverCrashed(ctx)
	if err != nil {
		return fmt.Errorf("crash recovery: %w", err)
	}
	for _, id := range recovered {
		logging.Info("recovered crashed execution %s as failed", id)
	}

	go approvals.RunSweeper(ctx, cfg.ApprovalSweepInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logging.Info(color.GreenString("execd ready: worktree_root=%s db=%s", cfg.WorktreeRoot, cfg.DBPath))

	<-sigCh
	logging.Info("shutting down: stopping all running executions")
	reg.StopAll()
	return nil
}
