package commands

import (
	"github.com/spf13/cobra"

	"tourismcli/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Serve the pipeline API under /api/v1 and Prometheus metrics at /metrics.

Runs are kept in memory for the life of the process. POST /api/v1/runs with
{"source_path": "...", "persist": true} writes accepted results to a
sub-directory of output.dir named after the run ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}
			application, err := app.NewApplication(c.cfg, c.logger)
			if err != nil {
				return c.printer.Error("cannot start server", err.Error())
			}
			c.printer.Step("listening on :%d", c.cfg.Server.Port)
			return application.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}
