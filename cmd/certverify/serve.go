package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"certverify/internal/config"
	"certverify/internal/db"
	"certverify/internal/handlers"
	"certverify/internal/qr"
	"certverify/internal/report"
	"certverify/internal/router"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the verification HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logrus.WithError(err).Warn("close collaborators")
		}
	}()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBURL, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logrus.WithError(err).Warn("close database")
		}
	}()

	h := handlers.New(handlers.Config{
		UploadDir:       cfg.UploadDir,
		MaxUploadBytes:  cfg.MaxUploadMB << 20,
		ShareSecret:     []byte(cfg.ShareSecret),
		FrontendBaseURL: cfg.FrontendBaseURL,
		RetainFiles:     cfg.RetainFiles,
	}, a.verifier, report.NewStore(gdb), qr.DecodeFile)
	if cfg.ShareSecret == "" {
		logrus.Warn("SHARE_TOKEN_SECRET is not set, share links are disabled")
	}
	if cfg.AdminSecret == "" {
		logrus.Warn("ADMIN_JWT_SECRET is not set, operator routes are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.RegisterRouter(h, []string{cfg.FrontendBaseURL}, []byte(cfg.AdminSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("starting certverify API on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
