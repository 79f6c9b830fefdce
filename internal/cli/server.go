package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"testgen-session/internal/app"
	"testgen-session/internal/config"
	"testgen-session/internal/infra/api"
	"testgen-session/internal/infra/memory"
	pgarchive "testgen-session/internal/infra/postgres"
	redisinfra "testgen-session/internal/infra/redis"
	transport "testgen-session/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the bridge.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	client := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: config.TTLDuration(cfg.API.Timeout, 15*time.Second),
	})
	if cfg.API.TokenFile != "" {
		client = client.WithTokenSource(api.FileToken(cfg.API.TokenFile))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	testTTL := config.TTLDuration(cfg.Test.TTL, 10*time.Minute)
	var catalog app.TestCatalog
	var guard app.EntryGuard
	if redisClient != nil {
		catalog = redisinfra.NewTestRepository(redisClient, client, testTTL)
		guard = redisinfra.NewEntryGuard(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Second))
	} else {
		catalog = memory.NewTestRepository(client, testTTL)
		guard = memory.NewEntryGuard()
	}

	var archive app.ResultArchive = memory.NewArchive()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		archive = pgarchive.NewArchive(pool)
	}

	keying, err := app.ParseKeying(cfg.Session.Keying)
	if err != nil {
		return err
	}
	opts := []app.Option{
		app.WithWindow(config.TTLDuration(cfg.Session.Window, app.DefaultWindow)),
		app.WithKeying(keying),
		app.WithAutoFinalize(cfg.AutoFinalizeEnabled(), config.TTLDuration(cfg.Session.FinalizeTimeout, 15*time.Second)),
		app.WithHistory(client),
		app.WithArchive(archive),
		app.WithEntryGuard(guard),
	}
	wsHandler := transport.NewWSHandler(func() *app.Engine {
		return app.NewEngine(client, catalog, opts...)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting session bridge on :%s (api %s, keying %s)", finalPort, cfg.API.BaseURL, keying)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
