package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aemo-price-feed/internal/nem"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the NEM price regions",
	Run: func(cmd *cobra.Command, args []string) {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Code\tState")
		for _, region := range nem.Regions() {
			fmt.Fprintf(writer, "%s\t%s\n", region, region.Name())
		}
		writer.Flush()
	},
}
