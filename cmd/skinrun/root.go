package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sawpanic/skinrun/internal/config"
)

// globals are the persistent flags shared by every subcommand
type globals struct {
	configPath string
	logLevel   string
	logFile    string

	cfg *config.Config
}

func bindGlobalFlags(fs *pflag.FlagSet, g *globals) {
	fs.StringVar(&g.configPath, "config", "", "Path to YAML configuration (defaults built in)")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
	fs.StringVar(&g.logFile, "log-file", "", "Also write JSON logs to this rotating file")
}

// Execute builds the command tree and runs it
func Execute(ctx context.Context) error {
	g := &globals{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Skin market scanner with adaptive multi-source price fetching",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			if g.logLevel != "" {
				cfg.Log.Level = g.logLevel
			}
			if g.logFile != "" {
				cfg.Log.File = g.logFile
			}
			if err := setupLogging(cfg.Log, os.Stderr); err != nil {
				return err
			}
			g.cfg = cfg
			return nil
		},
	}
	bindGlobalFlags(root.PersistentFlags(), g)

	root.AddCommand(scanCmd(g))
	root.AddCommand(cacheCmd(g))
	root.AddCommand(serveCmd(g))
	root.AddCommand(historyCmd(g))

	return root.ExecuteContext(ctx)
}

// setupLogging configures the global logger: console on stderr plus an
// optional rotating JSON file
func setupLogging(cfg config.LogConfig, console io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		return fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, cfg.Level)
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}
	if cfg.File != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
