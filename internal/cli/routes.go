package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/lyphgraph/internal/server"
)

func newRoutesCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the generated REST routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(f, cmd)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(s.Schema)
			if err != nil {
				return err
			}
			routes, err := server.Routes(reg)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range routes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Verb, r.Path, r.PathType, r.Summary)
			}
			return w.Flush()
		},
	}
}
