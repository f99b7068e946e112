package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lydakis/ubridge/internal/config"
	"github.com/lydakis/ubridge/internal/instance"
)

var instancesJSON bool

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List running editor instances",
	Long: `Discover and list the editor instances running on this machine.

For each instance, displays its canonical id, project path, local port and
status. Use --json for machine-readable output.`,
	RunE: runInstances,
}

func init() {
	instancesCmd.Flags().BoolVar(&instancesJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(instancesCmd)
}

func runInstances(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	registry, p := buildInstanceStack(cfg)
	defer p.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := registry.DiscoverAll(ctx, true)
	if err != nil {
		return err
	}

	if instancesJSON {
		return printInstancesJSON(records)
	}
	printInstancesTable(records)
	return nil
}

func printInstancesJSON(records []instance.Record) error {
	listing := make([]map[string]any, len(records))
	for i, rec := range records {
		listing[i] = rec.ToMap()
	}
	data, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printInstancesTable(records []instance.Record) {
	if len(records) == 0 {
		fmt.Println("No editor instances found.")
		return
	}

	fmt.Printf("%-28s %-7s %-10s %s\n", "INSTANCE", "PORT", "STATUS", "PATH")
	for _, rec := range records {
		fmt.Printf("%-28s %-7d %-10s %s\n", rec.ID(), rec.Port, coloredStatus(rec.Status), rec.Path)
	}

	if warning := instance.DuplicateNameWarning(records); warning != "" {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning: %s\n", warning)
	}
}

func coloredStatus(status string) string {
	switch status {
	case instance.StatusRunning:
		return color.GreenString(status)
	case instance.StatusReloading:
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}
