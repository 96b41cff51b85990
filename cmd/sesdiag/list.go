package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/ses"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known diagnostic pages and element types",
	Args:  maxArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Pages        []ses.CatalogEntry `json:"pages"`
				ElementTypes []ses.CatalogEntry `json:"element_types"`
			}{ses.Pages(), ses.ElementTypes()})
		}

		fmt.Println("Diagnostic pages, code:")
		for _, e := range ses.Pages() {
			fmt.Printf("    %-52s [0x%x]\n", e.Description, e.Code)
		}
		fmt.Println()
		fmt.Println("Element types, code:")
		for _, e := range ses.ElementTypes() {
			fmt.Printf("    %-52s [0x%x]\n", e.Description, e.Code)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
}
