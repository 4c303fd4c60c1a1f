// Package cli wires configuration, storage, generators and front-ends into
// the writepal commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/writepal/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries state shared by every command.
type app struct {
	envFile  string
	logLevel string
	provider string
	model    string
	dbDriver string
	dbPath   string

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "writepal",
		Short: "Guided essay writing coach for K-12 learners",
		Long: `WritePal walks a young writer through an essay: choosing a topic,
brainstorming ideas, outlining, drafting and revising with feedback until the
essay is ready or the revision limit is reached.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	flags.StringVar(&a.provider, "provider", "", "override LLM_PROVIDER")
	flags.StringVar(&a.model, "model", "", "override LLM_MODEL")
	flags.StringVar(&a.dbDriver, "db-driver", "", "override DB_DRIVER (sqlite, postgres)")
	flags.StringVar(&a.dbPath, "db", "", "override DB_PATH")

	root.AddCommand(
		newServeCommand(a),
		newConsoleCommand(a),
		newTUICommand(a),
		newGenServerCommand(a),
		newProfileCommand(a),
	)
	return root
}

// load reads .env, the environment and flag overrides, then validates.
func (a *app) load(cmd *cobra.Command) error {
	if err := godotenv.Load(a.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	overrides := map[string]string{
		"LOG_LEVEL":    a.logLevel,
		"LLM_PROVIDER": a.provider,
		"LLM_MODEL":    a.model,
		"DB_DRIVER":    a.dbDriver,
		"DB_PATH":      a.dbPath,
	}
	for key, val := range overrides {
		if val == "" {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("apply %s override: %w", key, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.Name(), cfg.LogLevel, a.stdout, a.stderr)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger follows the server convention of JSON on stdout; interactive
// commands log text to stderr so prompts stay readable.
func newLogger(command string, level slog.Level, stdout, stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch command {
	case "serve", "genserver":
		return slog.New(slog.NewJSONHandler(stdout, opts))
	default:
		return slog.New(slog.NewTextHandler(stderr, opts))
	}
}
