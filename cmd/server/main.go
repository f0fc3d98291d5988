package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/auth"
	"github.com/taskboard/app/internal/config"
	"github.com/taskboard/app/internal/database"
	"github.com/taskboard/app/internal/handlers"
	"github.com/taskboard/app/internal/logger"
	"github.com/taskboard/app/internal/router"
)

func main() {
	configPath := flag.String("config", getEnv("TASKBOARD_CONFIG", "config/app.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New("taskboard", cfg.Log.Level, os.Stdout)

	// Refuse to start with a missing or weak signing secret.
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("initialize database")
	}
	defer db.Close()

	authService, err := auth.New(db, cfg.Auth.Secret, cfg.Auth.TokenTTL, log)
	if err != nil {
		log.WithError(err).Fatal("initialize auth")
	}

	env := &handlers.Env{
		DB:           db,
		Auth:         authService,
		Logger:       log,
		Flashes:      handlers.NewFlashStore(cfg.Auth.Secret, cfg.Auth.CookieSecure),
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Setup(env),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   cfg.Server.Addr,
			"driver": cfg.Database.Driver,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
