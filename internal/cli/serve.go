package cli

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long:  "Load the schema, attach storage, and serve every generated route until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(f, cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(s.Log)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, s, log)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := a.server()
			if err != nil {
				return err
			}
			log.Infow("lyphgraph starting",
				"version", Version,
				"base_url", s.BaseURL,
				"data_dir", s.DataDir,
				"routes", len(srv.Routes()),
			)
			return srv.ListenAndServe(ctx, net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
		},
	}
	cmd.Flags().String("host", "", "host to listen on (default: localhost)")
	cmd.Flags().Int("port", 0, "port to listen on (default: 8888)")
	cmd.Flags().String("base-url", "", "prefix of every href (default: http://host:port)")
	cmd.Flags().Bool("console-logging", true, "log every failed request")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().Bool("dev", false, "development logging to stdout")
	return cmd
}
