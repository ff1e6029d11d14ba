package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billbatista/acasinha-spend/api"
	"github.com/billbatista/acasinha-spend/config"
	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/memstore"
	"github.com/billbatista/acasinha-spend/notify"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/report"
	"github.com/billbatista/acasinha-spend/session"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/billbatista/acasinha-spend/storage"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "spend",
		Short:        "Shared project spending with member approval",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		printErrorAndExit("command failed", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate needs the %s store, got %s", config.StorePostgres, cfg.Store)
			}
			if err := storage.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

// backend holds the repositories of one store.
type backend struct {
	users     user.Repository
	sessions  session.Repository
	projects  project.Repository
	ledgers   ledger.Repository
	spendings spending.Repository
	inbox     api.Inbox
	sender    notify.Sender
	health    func(ctx context.Context) error
	close     func()
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	var (
		b   *backend
		err error
	)
	switch cfg.Store {
	case config.StoreMemory:
		b, err = memoryBackend(cfg)
	default:
		b, err = postgresBackend(ctx, cfg, migrate)
	}
	if err != nil {
		return err
	}
	defer b.close()

	worker := notify.NewWorker(b.sender, cfg.NotifyBuffer)
	worker.Start()
	defer worker.Shutdown()

	resolver := project.NewResolver(b.projects, b.users)
	spendings := spending.NewService(b.spendings, resolver, b.ledgers, worker)
	handler := api.NewHandler(api.Deps{
		Users:     b.users,
		Sessions:  b.sessions,
		Projects:  resolver,
		Spendings: spendings,
		Ledgers:   ledger.NewService(b.ledgers, resolver),
		Reports:   report.NewService(spendings, b.spendings, resolver, b.ledgers),
		Inbox:     b.inbox,
		Health:    b.health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.Store)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func memoryBackend(cfg *config.Config) (*backend, error) {
	store := memstore.New(cfg.SessionTTL)
	if cfg.SeedFile != "" {
		f, err := os.Open(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("opening seed file: %w", err)
		}
		defer f.Close()
		if err := store.Seed(f); err != nil {
			return nil, err
		}
		slog.Info("memory store seeded", "file", cfg.SeedFile)
	}

	return &backend{
		users:     store.Users,
		sessions:  store.Sessions,
		projects:  store.Projects,
		ledgers:   store.Ledgers,
		spendings: store.Spendings,
		inbox:     store.Inbox,
		sender:    notify.MultiSender{store.Inbox, notify.LogSender{}},
		close:     func() {},
	}, nil
}

func postgresBackend(ctx context.Context, cfg *config.Config, migrate bool) (*backend, error) {
	if migrate {
		if err := storage.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	inbox := notify.NewSQLInbox(db)
	closers := []func() error{db.Close}
	senders := notify.MultiSender{inbox}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			db.Close()
			return nil, err
		}
		senders = append(senders, publisher)
		closers = append([]func() error{publisher.Close}, closers...)
	} else {
		senders = append(senders, notify.LogSender{})
	}

	return &backend{
		users:     user.NewRepository(db),
		sessions:  session.NewRepository(db, cfg.SessionTTL),
		projects:  project.NewRepository(db),
		ledgers:   ledger.NewRepository(db),
		spendings: spending.NewRepository(db),
		inbox:     inbox,
		sender:    senders,
		health:    pinger(db),
		close: func() {
			for _, c := range closers {
				if err := c(); err != nil {
					slog.Error("closing resource", "error", err)
				}
			}
		},
	}, nil
}

func pinger(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
