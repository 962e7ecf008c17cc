// Package main is the PathFinder operator CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/pathfinder/internal/auth"
	"github.com/dharsanguruparan/pathfinder/internal/config"
	"github.com/dharsanguruparan/pathfinder/internal/database"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/repository"
	"github.com/dharsanguruparan/pathfinder/internal/session"
	"github.com/dharsanguruparan/pathfinder/internal/worker"
	"github.com/dharsanguruparan/pathfinder/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pathfinder: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pathfinder",
		Short: "PathFinder operator CLI",
		Long: `PathFinder CLI covers the operator tasks that have no HTTP surface: applying the
schema, provisioning administrators, moving applications through review and
reclaiming orphaned documents.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newAdminCmd(),
		newStatusCmd(),
		newSweepCmd(),
		newRunCmd(),
	)
	return cmd
}

// connect loads configuration and opens the database every command but run
// needs.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if !cfg.UsesDatabase() {
		return nil, nil, fmt.Errorf("PATHFINDER_DATABASE_URL is not set")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return cfg, pool, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and seed job categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			pool.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	var email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			svc := auth.NewService(repository.NewUserRepository(pool), session.NewMemoryStore(cfg.SessionTTL))
			admin, err := svc.CreateAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %d <%s>\n", admin.ID, admin.Email)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Administrator email")
	create.Flags().StringVar(&password, "password", "", "Administrator password")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect or change application status",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <application-id> <status>",
		Short: "Set the review status of an application",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid application id %q", args[0])
			}
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			docs, err := docstore.New(ctx, cfg)
			if err != nil {
				return err
			}
			svc := workflow.NewService(repository.NewJobRepository(pool), repository.NewApplicationRepository(pool), docs, nil)
			if err := svc.UpdateStatus(ctx, id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "application %d is now %s\n", id, args[1])
			return nil
		},
	})
	return cmd
}

func newSweepCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stored documents no application references",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			docs, err := docstore.New(ctx, cfg)
			if err != nil {
				return err
			}
			processor := worker.NewProcessor(repository.NewApplicationRepository(pool), docs, cfg.MaxFileSize, cfg.OrphanGrace)
			report, err := processor.Sweep(ctx, dryRun)
			if err != nil {
				return err
			}
			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scanned %d documents\n", report.Scanned)
			cats := make([]string, 0, len(report.Orphans))
			for cat := range report.Orphans {
				cats = append(cats, string(cat))
			}
			sort.Strings(cats)
			for _, cat := range cats {
				for _, ref := range report.Orphans[docstore.Category(cat)] {
					fmt.Fprintf(out, "%s %s/%s\n", verb, docstore.Category(cat).Dir(), ref)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List orphans without removing them")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			return runCommand(cmd.Context(), "go", goArgs...)
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
