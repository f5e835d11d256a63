package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"tourismcli/internal/config"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/printer"
	contracts "tourismcli/pkg/contracts"
)

// cli holds what every subcommand needs once flags are parsed
type cli struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	printer  *printer.Printer
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "tourismcli",
		Short: "Clean, reconcile and validate overseas visitor statistics workbooks",
		Long: `tourismcli turns the quarterly overseas visitor release workbooks into
one canonical, validated observation table.

Each workbook goes through load, clean, transform, optional gap filling and
validation. Clean results are persisted as CSV (and optionally XLSX,
snappy-compressed CSV or Parquet) together with the validation report and
the data dictionary. Results with error-severity issues are only persisted with
--accept-non-clean.`,
		Version:       contracts.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closeLog != nil {
				return c.closeLog()
			}
			return nil
		},
	}

	root.SetVersionTemplate(contracts.GetFullVersionString() + "\n")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: tourism.yaml or configs/tourism.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level override: debug, info, warn or error")

	root.AddCommand(
		newRunCmd(c),
		newInspectCmd(c),
		newSchemaCmd(c),
		newServeCmd(c),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func (c *cli) setup(cmd *cobra.Command) error {
	c.printer = printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return c.printer.Error("invalid configuration", err.Error(),
			"check the file passed with --config",
			"check TOURISM_* environment variables")
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return c.printer.Error("cannot open log output", err.Error())
	}

	c.cfg, c.logger, c.closeLog = cfg, logger, closeLog
	return nil
}
