package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"tourismcli/internal/schema"
)

func newSchemaCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the data dictionary of the canonical observation table",
		RunE: func(cmd *cobra.Command, args []string) error {
			dict := schema.NewRegistry().Describe()

			var (
				out []byte
				err error
			)
			switch format {
			case "json":
				out, err = json.MarshalIndent(dict, "", "  ")
				out = append(out, '\n')
			case "yaml":
				out, err = yaml.Marshal(dict)
			default:
				return c.printer.Error("invalid format", fmt.Sprintf("unknown format %q", format), "use --format json or --format yaml")
			}
			if err != nil {
				return err
			}
			_, err = c.printer.Out().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
