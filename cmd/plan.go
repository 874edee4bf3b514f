package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

var planCmd = &cobra.Command{
	Use:   "plan <line> <from_stop_id> <to_stop_id>",
	Short: "Plans a trip between two stops of a line",
	Args:  cobra.ExactArgs(3),
	RunE:  plan,
}

var (
	paymentMethod string
	planJSON      bool
)

func init() {
	planCmd.Flags().StringVarP(&paymentMethod, "payment", "p", "", "Payment method (default: the line's base method)")
	planCmd.Flags().BoolVarP(&planJSON, "json", "", false, "Print the trip as JSON")
	rootCmd.AddCommand(planCmd)
}

func plan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := LoadApp(ctx, metrics.NewCollector())
	if err != nil {
		return err
	}
	defer app.Close()

	trip, err := app.Planner.PlanTrip(ctx, args[0], args[1], args[2], paymentMethod)
	if err != nil {
		return fmt.Errorf("%s error: %w", model.Classify(err), err)
	}

	if planJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trip)
	}

	names := make([]string, 0, len(trip.Path))
	for _, s := range trip.Path {
		names = append(names, s.Name)
	}

	fmt.Printf("%s -> %s (%s)\n", trip.From.Name, trip.To.Name, trip.Direction)
	fmt.Printf("  via %s\n", strings.Join(names, ", "))
	fmt.Printf("  %g %s, about %d min\n", trip.Distance, trip.DistanceUnit, trip.EstimatedMinutes)
	fmt.Printf("  fare: PHP %.2f (%s)\n", trip.Fare, trip.PaymentMethod.Name)
	if trip.FullFare != nil && trip.Savings != nil {
		fmt.Printf("  full fare: PHP %.2f, saving PHP %.2f\n", *trip.FullFare, *trip.Savings)
	}

	return nil
}
