package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write all entities and links to JSONL files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openForTransfer(f, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.backend.Export(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load entities and links from JSONL files",
		Long:  "Load resources.jsonl and links.jsonl from dir in one transaction. Rows with an existing id are replaced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openForTransfer(f, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			resources, links, err := a.backend.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d resources and %d links\n", resources, links)
			return nil
		},
	}
}

func openForTransfer(f *rootFlags, cmd *cobra.Command) (*app, error) {
	s, err := loadSettings(f, cmd)
	if err != nil {
		return nil, err
	}
	return openApp(cmd.Context(), s, zap.NewNop().Sugar())
}
