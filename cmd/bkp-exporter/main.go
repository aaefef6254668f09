package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aziugo/prometheus-bkp-exporter/internal/collector"
	"github.com/aziugo/prometheus-bkp-exporter/internal/config"
	"github.com/aziugo/prometheus-bkp-exporter/internal/server"
)

const defaultPort = 9110

var version = "dev" // Will be overridden during build

const (
	exitOK     = 0
	exitConfig = 1
	exitError  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		port       int
		configFile string
	)

	log := logrus.New()

	rootCmd := &cobra.Command{
		Use:   "bkp-exporter",
		Short: "Prometheus exporter for backup file freshness and size",
		Long: `bkp-exporter scans configured backup folders, matches filenames
against per-location patterns and exposes each matching file's
modification time and size as labeled gauges on /metrics.

Note: the endpoint is not protected, block it from outside using a
firewall.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = config.DefaultPath()
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			log.WithField("locations", len(cfg.Locations)).Info("configuration loaded")

			registry := prometheus.NewRegistry()
			registry.MustRegister(collector.New(cfg, log))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(port, registry, log).Run(ctx)
		},
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", defaultPort,
		"exporter port")
	rootCmd.Flags().StringVarP(&configFile, "config-file", "f", "",
		"configuration file (default: config.yml next to the binary)")

	if err := rootCmd.Execute(); err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, cfgErr.Error())
			return exitConfig
		}
		log.WithError(err).Error("unexpected error")
		return exitError
	}
	return exitOK
}
