package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dvbcss/clocktree/internal/config"
	"github.com/dvbcss/clocktree/internal/hostclock"
	"github.com/dvbcss/clocktree/internal/registry"
	"github.com/dvbcss/clocktree/internal/server"
	"github.com/dvbcss/clocktree/internal/sink"
)

var (
	configPath string
	logLevel   string
	version    = "0.1.0"
	buildTime  = "unknown"
	gitCommit  = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clocktree",
		Short: "clocktree builds and serves a DVB CSS style clock hierarchy",
		Run:   runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/clocktree.yml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error); overrides the config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clocktree %s\n", version)
			fmt.Printf("build time: %s\n", buildTime)
			fmt.Printf("git commit: %s\n", gitCommit)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	validateConfigCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Run:   validateConfig,
	}
	showConfigCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Run:   showConfig,
	}
	configCmd.AddCommand(validateConfigCmd, showConfigCmd)

	rootCmd.AddCommand(versionCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	levelName := logLevel
	if levelName == "" && cfg != nil {
		levelName = cfg.Level
	}
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		logger.Fatal("invalid log level: ", levelName)
	}
	logger.SetLevel(level)

	format := "text"
	if cfg != nil && cfg.Format != "" {
		format = cfg.Format
	}
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return logger
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logrus.Fatal("failed to load config: ", err)
	}

	logger := newLogger(&cfg.Logging)
	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}).Info("starting clocktree")
	logger.WithField("config_path", configPath).Info("loaded configuration")

	host := hostclock.New()

	reg, err := registry.Build(host, cfg.ClockTree)
	if err != nil {
		logger.Fatal("failed to build clock tree: ", err)
	}
	logger.WithField("clocks", reg.IDs()).Info("built clock tree")

	var eventSink *sink.Sink
	if cfg.Elasticsearch.Enabled {
		eventSink, err = sink.New(cfg.Elasticsearch, logger)
		if err != nil {
			logger.WithError(err).Error("failed to create event sink, continuing without it")
			eventSink = nil
		} else {
			eventSink.Attach(reg)
		}
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, reg, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.WithError(err).Error("HTTP server failed")
			}
		}()
	}

	logger.Info("clocktree started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig).Info("received shutdown signal")

	logger.Info("shutting down clocktree...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("failed to stop HTTP server")
		}
	}
	if eventSink != nil {
		if err := eventSink.Stop(); err != nil {
			logger.WithError(err).Error("failed to stop event sink")
		}
	}

	logger.Info("clocktree stopped")
}

func validateConfig(cmd *cobra.Command, args []string) {
	if _, err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("configuration is valid")
}

func showConfig(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("configuration loaded from: %s\n", configPath)
	fmt.Printf("root clock: %s (tick rate %.0f)\n", cfg.ClockTree.Root.ID, cfg.ClockTree.Root.TickRate)
	fmt.Printf("child clocks: %d\n", len(cfg.ClockTree.Nodes))
	for _, n := range cfg.ClockTree.Nodes {
		fmt.Printf("  - %s (%s) parent=%s\n", n.ID, n.Kind, n.Parent)
	}

	if cfg.HTTP.Enabled {
		fmt.Printf("HTTP introspection: enabled on %s\n", cfg.HTTP.Listen)
	} else {
		fmt.Printf("HTTP introspection: disabled\n")
	}

	if cfg.Elasticsearch.Enabled {
		fmt.Printf("elasticsearch sink: enabled, hosts=%v index=%s\n", cfg.Elasticsearch.Hosts, cfg.Elasticsearch.Index)
	} else {
		fmt.Printf("elasticsearch sink: disabled\n")
	}
}
