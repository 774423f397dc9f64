package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/bawdo/sqldivider/binding"
	"github.com/bawdo/sqldivider/decompose"
	"github.com/bawdo/sqldivider/engine"
	"github.com/bawdo/sqldivider/internal/config"
	"github.com/bawdo/sqldivider/settings"
)

// Version is set at build time.
var Version = "0.1.0"

type configKey struct{}

func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{Pattern: binding.MyBatis.String(), LogLevel: "warn", MaxRows: engine.DefaultMaxRows}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "sqldivider",
		Short: "Interactive SQL workbench",
		Long: `sqldivider binds parameters into SQL templates written for MyBatis, JPA,
Dapper or log output, runs them, and splits WITH queries into the SELECT
statements they are made of so each can be run on its own.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.ErrOrStderr())
			if cfg.File != "" {
				logger.Debug("config loaded", "file", cfg.File)
			}
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			cmd.SetContext(config.WithLogger(ctx, logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd.Context(), getConfig(cmd.Context()))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	flags.String("pattern", "", "placeholder pattern ("+strings.Join(binding.PatternNames(), "|")+")")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.Int("max-rows", 0, "maximum rows kept per result")
	flags.String("settings-path", "", "path to the settings database")
	flags.String("history-file", "", "path to the REPL history file")
	flags.Duration("handoff-timeout", 0, "how long a new window may take to acknowledge its snapshot")
	flags.Int("decompose-cache-size", 0, "number of split templates remembered")

	_ = root.RegisterFlagCompletionFunc("pattern", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return binding.PatternNames(), cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newBindCmd())
	root.AddCommand(newSplitCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func runREPL(ctx context.Context, cfg *config.Config) error {
	logger := config.GetLogger(ctx)

	if dir := filepath.Dir(cfg.SettingsPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	store, err := settings.OpenSQLite(ctx, cfg.SettingsPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cache, err := decompose.NewCache(cfg.DecomposeCacheSize)
	if err != nil {
		return err
	}
	eng := engine.New(engine.WithMaxRows(cfg.MaxRows), engine.WithLogger(logger))

	wb := newWorkbench(ctx, workbenchConfig{
		driver:          eng,
		tables:          eng.Tables,
		truncated:       eng.Truncated,
		maxRows:         eng.MaxRows(),
		decomposer:      cache,
		store:           store,
		pattern:         cfg.BindPattern(),
		handoffTimeout:  cfg.HandoffTimeout,
		handoffInterval: cfg.HandoffInterval,
		logger:          logger,
		out:             os.Stdout,
	})
	defer func() { _ = wb.Close() }()
	if err := wb.loadSettings(); err != nil {
		logger.Warn("stored settings not applied", "error", err)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          wb.prompt(),
		HistoryFile:     cfg.HistoryFile,
		HistoryLimit:    500,
		AutoComplete:    &replCompleter{wb: wb},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("sqldivider: type 'help' for commands, 'exit' to quit")
	if info := wb.conn.Info(); info.DBType != "" {
		fmt.Printf("  Stored connection: %s (type 'connect')\n", info)
	}
	fmt.Println()

	for {
		rl.SetPrompt(wb.prompt())
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF on ctrl-d
			break
		}
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if lower == "exit" || lower == "quit" {
			break
		}
		if err := wb.Execute(line); err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		}
	}
	fmt.Println()
	return nil
}
