package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kurtesianplane/andarTayo-sub000/metrics"
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "Lists supported lines and their payment methods",
	Args:  cobra.NoArgs,
	RunE:  listLines,
}

var stopsCmd = &cobra.Command{
	Use:   "stops <line>",
	Short: "Lists the stops of a line, in sequence order",
	Args:  cobra.ExactArgs(1),
	RunE:  listStops,
}

func init() {
	rootCmd.AddCommand(linesCmd)
	rootCmd.AddCommand(stopsCmd)
}

func listLines(cmd *cobra.Command, args []string) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}

	for _, line := range registry.List() {
		methods := []string{}
		for _, m := range line.PaymentMethods {
			methods = append(methods, m.ID)
		}
		fmt.Printf("%s: %s (%s, %s)\n", line.ID, line.Name, line.FareKind, strings.Join(methods, ", "))
	}

	return nil
}

func listStops(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := LoadApp(ctx, metrics.NewCollector())
	if err != nil {
		return err
	}
	defer app.Close()

	statuses, err := app.Planner.StopStatuses(ctx, args[0])
	if err != nil {
		return err
	}

	for _, s := range statuses {
		line := fmt.Sprintf("%3d %s: %s", s.Sequence, s.ID, s.Name)
		if s.Extension != "" {
			line += fmt.Sprintf(" [%s]", s.Extension)
		}
		if s.Disabled {
			line += " (disabled)"
		}
		fmt.Println(line)
		for _, a := range s.Alerts {
			fmt.Printf("      ! %s\n", a.Title)
		}
	}

	return nil
}
