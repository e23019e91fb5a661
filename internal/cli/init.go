package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInitCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long:  "Write a default config.yaml if none exists, then create the database and its constraints.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(f, cmd)
			if err != nil {
				return err
			}
			written, err := writeConfigIfMissing(s.ConfigDir, s)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), s, zap.NewNop().Sugar())
			if err != nil {
				return err
			}
			if err := a.Close(); err != nil {
				return fmt.Errorf("detach storage: %w", err)
			}

			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintf(out, "wrote %s/%s\n", s.ConfigDir, configFileExt)
			}
			fmt.Fprintf(out, "lyphgraph initialized in %s\n", s.DataDir)
			return nil
		},
	}
}
