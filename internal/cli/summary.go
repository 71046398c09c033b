package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewSummaryCmd создаёт команду "summary".
func NewSummaryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show all users and records from all downstream services",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFn().Summary()
			if err != nil {
				return err
			}

			printAggregated(outputFn(), result)
			return nil
		},
	}
}

// NewTargetsCmd создаёт команду "targets".
func NewTargetsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List downstream services and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := clientFn().ListTargets()
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"NAME", "SERVICE", "URL", "TIMEOUT", "HEALTH"}
			rows := make([][]string, len(targets))
			for i, t := range targets {
				rows[i] = []string{
					t.Name,
					t.Service,
					t.BaseURL,
					strconv.FormatInt(t.TimeoutMS, 10) + "ms",
					healthLabel(t.Health),
				}
			}
			out.Print(headers, rows, targets)
			return nil
		},
	}
}

func healthLabel(h *HealthResponse) string {
	switch {
	case h == nil:
		return "-"
	case h.Up:
		return "up"
	case h.Reason != "":
		return "down (" + h.Reason + ")"
	default:
		return "down"
	}
}
