package cli

import (
	"fmt"
	"os"

	"github.com/ashureev/writepal/internal/store"
	"github.com/containerd/errdefs"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newProfileCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage learner profiles",
	}
	cmd.AddCommand(newProfileImportCommand(a), newProfileShowCommand(a))
	return cmd
}

func newProfileImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import profiles from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open profiles: %w", err)
			}
			defer f.Close()

			repo, err := openRepository(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := store.ImportProfiles(cmd.Context(), repo, f)
			if err != nil {
				return err
			}
			a.logger.Info("Profiles imported", "count", n, "file", args[0])
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d profile(s)\n", n)
			return nil
		},
	}
}

func newProfileShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a learner profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			p, err := repo.GetProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("profile %q: %w", args[0], errdefs.ErrNotFound)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(p)
		},
	}
}
