// mock-backend — локальный бэкенд анализа с auth-эндпойнтами для ручной проверки dashboard-bff.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pribylovaa/go-weibo-monitor/internal/backendtest"
)

func main() {
	_ = godotenv.Load()

	var (
		addr     string
		username string
		email    string
		password string
		ttl      time.Duration
	)
	flag.StringVar(&addr, "addr", envOr("MOCK_ADDR", "127.0.0.1:5000"), "listen address")
	flag.StringVar(&username, "user", envOr("MOCK_USER", "admin"), "seeded username")
	flag.StringVar(&email, "email", envOr("MOCK_EMAIL", "admin@example.com"), "seeded email")
	flag.StringVar(&password, "password", envOr("MOCK_PASSWORD", "admin123"), "seeded password")
	flag.DurationVar(&ttl, "access-ttl", 15*time.Minute, "access token lifetime")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := backendtest.New()
	b.SetAccessTTL(ttl)
	if err := b.AddUser(username, email, password); err != nil {
		log.Error("seed_user_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("mock_backend_listen", slog.String("addr", addr), slog.String("user", username))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http_serve_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("mock_backend_stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
