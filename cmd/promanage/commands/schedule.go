package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promanage/display"
	"github.com/teranos/promanage/schedule"
)

// ScheduleCmd groups the scheduling commands
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scheduler",
	Long: `Run the scheduler over every stored work item.

A run resets every item to PENDING, places the most valuable items into the
latest free slot at or before their deadline, marks the rest REJECTED and
records the run. Capacity is scheduler.base_capacity, one less when the mean
value of items created in the trend window exceeds scheduler.revenue_threshold.

Examples:
  promanage schedule run             # Run and persist
  promanage schedule run --dry-run   # Show the plan without writing
  promanage schedule max-profit      # Best schedule over the largest deadline`,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and persist the result",
	RunE:  runScheduleRun,
}

var scheduleMaxProfitCmd = &cobra.Command{
	Use:   "max-profit",
	Short: "Show the most valuable schedule if capacity were the largest deadline",
	Long:  "Compute the best schedule with one slot per deadline day. Statuses are not changed.",
	RunE:  runScheduleMaxProfit,
}

var scheduleDryRun bool

func init() {
	scheduleRunCmd.Flags().BoolVar(&scheduleDryRun, "dry-run", false, "Compute the plan without writing statuses or run history")

	ScheduleCmd.AddCommand(scheduleRunCmd)
	ScheduleCmd.AddCommand(scheduleMaxProfitCmd)
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *schedule.Result
	if scheduleDryRun {
		result, err = a.service.Preview(cmd.Context())
	} else {
		result, err = a.service.Run(cmd.Context())
	}
	if err != nil {
		return err
	}
	return printResult(cmd, result)
}

func runScheduleMaxProfit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.MaxProfit(cmd.Context())
	if err != nil {
		return err
	}
	return printResult(cmd, result)
}

type resultJSON struct {
	Run              *schedule.Run `json:"run,omitempty"`
	SelectedProjects interface{}   `json:"selectedProjects"`
	TotalProfit      string        `json:"totalProfit"`
	Capacity         int           `json:"capacity"`
	DryRun           bool          `json:"dryRun,omitempty"`
}

func printResult(cmd *cobra.Command, result *schedule.Result) error {
	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		doc := resultJSON{
			SelectedProjects: result.Scheduled,
			TotalProfit:      result.Total.String(),
			Capacity:         result.Plan.Capacity,
			DryRun:           result.DryRun,
		}
		if doc.SelectedProjects == nil {
			doc.SelectedProjects = []struct{}{}
		}
		if !result.DryRun {
			doc.Run = &result.Run
		}
		return display.OutputJSON(out, doc)
	}

	if result.DryRun && result.Run.ID != "" {
		pterm.Warning.Println("DRY RUN: nothing was written")
	}
	if result.Run.TrendHigh {
		pterm.Info.Printfln("Recent mean %s is above threshold %s, capacity reduced to %d",
			result.Run.RecentMean.StringFixed(2), result.Run.Threshold.String(), result.Plan.Capacity)
	}

	if len(result.Scheduled) == 0 {
		pterm.Info.Println("No items scheduled")
	} else if err := display.Table(out, slotRows(result.Scheduled)); err != nil {
		return err
	}

	pterm.Success.Printfln("Scheduled %d of %d slots, total value %s",
		len(result.Scheduled), result.Plan.Capacity, result.Total.String())
	if !result.DryRun {
		pterm.Info.Printfln("Run %s (%d rejected)", result.Run.ID, result.Run.RejectedCount)
	}
	return nil
}
