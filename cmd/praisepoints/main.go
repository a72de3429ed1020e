package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/praisepoints/internal/config"
	"github.com/dukerupert/praisepoints/internal/database"
	"github.com/dukerupert/praisepoints/internal/logging"
	"github.com/dukerupert/praisepoints/internal/push"
	"github.com/dukerupert/praisepoints/internal/server"
)

const usage = `usage: praisepoints [command]

commands:
  (none)               run the server
  gen-vapid            print a new VAPID key pair for web push
  backup               upload one backup and exit
  backups              list stored backups
  restore <key> <dst>  download a backup into a new database file
`

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if cmd == "gen-vapid" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate keys:", err)
			os.Exit(1)
		}
		fmt.Printf("PRAISE_VAPID_PUBLIC_KEY=%s\nPRAISE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	switch cmd {
	case "":
	case "backup", "backups", "restore":
		if err := runBackupCommand(context.Background(), srv, os.Args[1:]); err != nil {
			logger.Error("backup command failed", "command", cmd, "error", err)
			os.Exit(1)
		}
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Forget idle login rate-limit buckets.
	go func() {
		ticker := time.NewTicker(cfg.LoginRateWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	srv.Backups().Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("praisepoints listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.Backups().Stop()
	srv.Drain()
}

func runBackupCommand(ctx context.Context, srv *server.Server, args []string) error {
	m := srv.Backups()
	switch args[0] {
	case "backup":
		key, err := m.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Println(key)
	case "backups":
		objects, err := m.List(ctx)
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Printf("%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
		}
	case "restore":
		if len(args) != 3 {
			return errors.New("restore needs <key> <dst>")
		}
		if err := m.Restore(ctx, args[1], args[2]); err != nil {
			return err
		}
		fmt.Println("restored to", args[2])
	}
	return nil
}
