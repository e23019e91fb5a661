// Package cli implements the lyphgraph command-line interface: serve the
// REST API, initialize storage, inspect the compiled schema and its
// routes, and move data in and out as JSONL.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitUserError   = 1
	exitConfigError = 2
)

// rootFlags holds global flag values shared by the subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	schema    string
}

// NewRootCmd creates the top-level "lyphgraph" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "lyphgraph",
		Short:         "A generic REST server for lyph graphs",
		Long:          "lyphgraph serves the entity classes and relationships declared in a schema\ndocument through one generic REST surface.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().StringVar(&f.schema, "schema", "", "schema document (default: the embedded lyph schema)")

	root.AddCommand(
		newServeCmd(f),
		newInitCmd(f),
		newSchemaCmd(f),
		newRoutesCmd(f),
		newExportCmd(f),
		newImportCmd(f),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

func exitCode(err error) int {
	if errors.Is(err, types.ErrConfig) {
		return exitConfigError
	}
	return exitUserError
}
