package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ashureev/writepal/internal/console"
	"github.com/ashureev/writepal/internal/domain"
	"github.com/ashureev/writepal/internal/session"
	"github.com/ashureev/writepal/internal/tui"
	"github.com/spf13/cobra"
)

func newConsoleCommand(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run a coaching session in the terminal, one line at a time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd.Context(), a, userID, "console", func(ctx context.Context, s *session.Session) error {
				err := console.New(cmd.InOrStdin(), a.stdout, a.cfg.Session.DrainIdleTimeout).Run(ctx, s)
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", domain.DemoUserID, "learner profile to coach")
	return cmd
}

func newTUICommand(a *app) *cobra.Command {
	var (
		userID  string
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run a coaching session in a full-screen chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logFile == "" {
				logFile = filepath.Join(filepath.Dir(a.cfg.Transcript.Dir), "writepal-tui.log")
			}
			f, err := openLogFile(logFile)
			if err != nil {
				return err
			}
			defer f.Close()
			// The alternate screen owns the terminal; logs go to a file.
			a.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: a.cfg.LogLevel}))
			slog.SetDefault(a.logger)

			return runInteractive(cmd.Context(), a, userID, "tui", func(ctx context.Context, s *session.Session) error {
				return tui.Run(ctx, s)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", domain.DemoUserID, "learner profile to coach")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log destination (default next to the transcript directory)")
	return cmd
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// runInteractive starts one session and hands it to a front-end. The session
// is cancelled when the front-end returns.
func runInteractive(ctx context.Context, a *app, userID, via string, front func(context.Context, *session.Session) error) error {
	rt, err := newRuntime(ctx, a.cfg, a.logger, session.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := rt.sessions.Start(userID, via)
	if err != nil {
		return err
	}

	frontErr := front(ctx, s)
	_ = rt.sessions.Close(s.ID, "")
	<-s.Done()

	if _, err := s.Result(); err != nil && frontErr == nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("Session ended with error", "session_id", s.ID, "error", err)
	}
	return frontErr
}
