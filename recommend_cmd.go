package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"venue-discovery/internal/api"
	"venue-discovery/pkg/config"
)

// recommendCmd runs the pipeline once and prints the JSON response.
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate recommendations for a destination",
	Long: `Runs discovery, quality control, optional enhancement and ranking for one
request and prints the response as JSON. Logs go to stderr.`,
	Example: `  venue-discovery recommend --destination Cancun --categories dining,culture --budget medium
  venue-discovery recommend -d Lisbon --start 2026-05-01 --end 2026-05-04`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringP("destination", "d", "", "destination to search (required)")
	recommendCmd.Flags().StringSlice("categories", nil, "comma-separated venue categories")
	recommendCmd.Flags().String("budget", "", "budget: low, medium, high or luxury")
	recommendCmd.Flags().String("start", "", "trip start date (YYYY-MM-DD)")
	recommendCmd.Flags().String("end", "", "trip end date (YYYY-MM-DD)")
	recommendCmd.Flags().Bool("compact", false, "print JSON on one line")
	_ = recommendCmd.MarkFlagRequired("destination")

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	dest, _ := cmd.Flags().GetString("destination")
	cats, _ := cmd.Flags().GetStringSlice("categories")
	budget, _ := cmd.Flags().GetString("budget")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	compact, _ := cmd.Flags().GetBool("compact")

	body := api.RecommendationRequest{Destination: dest, Categories: cats, Budget: budget, StartDate: start, EndDate: end}
	if fields := api.Check(body); len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, strings.TrimSpace(f.Field+" "+f.Message))
		}
		return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}

	cfg := config.Load()
	log, err := newLogger(cfg, "stderr")
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	res := app.Service.GenerateRecommendations(ctx, body.ToContext())

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("recommendation failed at %s: %s", res.Metadata.FailedAt, res.Error)
	}
	return nil
}
