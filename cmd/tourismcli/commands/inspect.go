package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tourismcli/internal/loader"
)

func newInspectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect WORKBOOK",
		Short: "List the worksheets of a workbook and how they are mapped",
		Long: `List every worksheet with its size, merged ranges and visibility, and
show which dimension the config maps it to. Use it to check a new release
before running the pipeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := loader.ListSheets(args[0])
			if err != nil {
				return c.printer.Error("cannot read workbook", err.Error())
			}

			mapped := make(map[string]string, len(c.cfg.Source.Sheets))
			for _, m := range c.cfg.Source.Sheets {
				mapped[strings.ToLower(strings.TrimSpace(m.Sheet))] = m.Dimension
			}

			w := tabwriter.NewWriter(c.printer.Out(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SHEET\tROWS\tCOLUMNS\tMERGES\tVISIBLE\tDIMENSION")
			found := 0
			for _, s := range sheets {
				dim, ok := mapped[strings.ToLower(strings.TrimSpace(s.Name))]
				if ok {
					found++
				} else {
					dim = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%t\t%s\n", s.Name, s.Rows, s.Columns, s.Merges, s.Visible, dim)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if missing := len(c.cfg.Source.Sheets) - found; missing > 0 {
				c.printer.Warning("%d configured sheet(s) not in this workbook", missing)
			}
			return nil
		},
	}
}
