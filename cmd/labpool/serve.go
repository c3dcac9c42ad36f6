package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/labpool/internal/api"
	"github.com/jbweber/homelab/labpool/internal/metrics"
	"github.com/jbweber/homelab/labpool/internal/teams"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var (
	servePort      string
	serveLogLevel  string
	serveJWTSecret string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides LABPOOL_PORT)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level (overrides LABPOOL_LOG_LEVEL)")
	serveCmd.Flags().StringVar(&serveJWTSecret, "jwt-secret", "", "HMAC secret for bearer tokens (overrides LABPOOL_JWT_SECRET)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != "" {
		cfg.Port = servePort
	}
	if serveJWTSecret != "" {
		cfg.JWTSecret = serveJWTSecret
	}
	if serveLogLevel != "" {
		lvl, err := logrus.ParseLevel(serveLogLevel)
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
	}

	ds, err := cfg.InitializeDatabase()
	if err != nil {
		return err
	}
	defer ds.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.NewAPI(teams.NewManager(ds, m)), api.RouterOptions{
		Logger:    log,
		Metrics:   m,
		Gatherer:  reg,
		JWTSecret: cfg.JWTSecret,
		Health:    ds.Ping,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if cfg.JWTSecret == "" {
			log.Warn("no JWT secret configured, trusting the X-Student-ID header")
		}
		log.WithField("addr", srv.Addr).Info("starting labpool")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
