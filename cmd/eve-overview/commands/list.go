package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AreteDriver/EVE-Overview/internal/window"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List desktop windows",
	Long: `List all visible desktop windows as reported by the capture backend.

Window ids printed here are the ids used in profiles and the panel
API.`,
	Example: `  # List windows in table format (default)
  eve-overview list

  # List windows in JSON format
  eve-overview list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	if _, err := openStore(); err != nil {
		return err
	}

	backend := window.Detect()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	windows := backend.ListWindows(ctx)

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printWindowsTable(windows []window.Info) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tTITLE")
	fmt.Fprintln(w, "--\t-----")
	for _, win := range windows {
		fmt.Fprintf(w, "%s\t%s\n", win.ID, win.Title)
	}
	return nil
}
