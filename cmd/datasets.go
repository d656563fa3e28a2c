package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thirdweb-dev/extractor/internal/datasets"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "list datasets and their default columns",
	Run: func(cmd *cobra.Command, args []string) {
		printDatasets(cmd.OutOrStdout())
	},
}

func printDatasets(w io.Writer) {
	for _, entry := range datasets.All() {
		modes := []string{}
		if entry.ByBlock != nil {
			modes = append(modes, "blocks")
		}
		if entry.ByTransaction != nil {
			modes = append(modes, "txs")
		}
		fmt.Fprintf(w, "%s [%s]\n", entry.Dataset.Name(), strings.Join(modes, ","))
		fmt.Fprintf(w, "    default: %s\n", strings.Join(entry.Dataset.DefaultColumns(), ", "))
		fmt.Fprintf(w, "    sort:    %s\n", strings.Join(entry.Dataset.DefaultSort(), ", "))
	}
}
