package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jscyril/noor_player/internal/config"
	"github.com/jscyril/noor_player/internal/session"
	"github.com/jscyril/noor_player/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "noor",
	Short:         "Noor plays nasheeds, recitations and lectures from YouTube and local files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPlay,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/noor/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also log to stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openSession loads config, builds the logger and restores the session.
// console controls whether logs also go to stdout; the TUI owns the
// terminal so it never logs there.
func openSession(ctx context.Context, console bool) (*session.Session, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	logCfg := cfg.Log
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logCfg.OutputPath == "" {
		logCfg.OutputPath = filepath.Join(cfg.DataDir, "logs", "noor.log")
	}
	logCfg.Console = console && verbose
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	s, err := session.New(ctx, cfg, log, session.Deps{})
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		closeSession(s)
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return s, nil
}

// closeSession flushes pending writes with a deadline of its own, so it
// still runs after the command context was cancelled
func closeSession(s *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		s.Log.Error("close session", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	s.Log.Sync()
}
