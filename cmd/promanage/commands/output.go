package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/schedule"
)

func deadlineCell(w item.WorkItem) string {
	if w.Deadline == nil {
		return "-"
	}
	return strconv.Itoa(*w.Deadline)
}

func valueCell(w item.WorkItem) string {
	if !w.Value.Valid {
		return "-"
	}
	return w.Value.Decimal.String()
}

func createdCell(w item.WorkItem) string {
	if w.CreatedAt.IsZero() {
		return "-"
	}
	return w.CreatedAt.String()
}

// itemRows renders items as table data, header first
func itemRows(items []item.WorkItem) pterm.TableData {
	rows := pterm.TableData{{"ID", "Title", "Deadline", "Value", "Created", "Status"}}
	for _, w := range items {
		rows = append(rows, []string{
			strconv.FormatInt(w.ID, 10),
			w.Title,
			deadlineCell(w),
			valueCell(w),
			createdCell(w),
			string(w.Status),
		})
	}
	return rows
}

// slotRows renders the scheduled items with their 1-based slot
func slotRows(scheduled []item.WorkItem) pterm.TableData {
	rows := pterm.TableData{{"Slot", "ID", "Title", "Deadline", "Value"}}
	for i, w := range scheduled {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(w.ID, 10),
			w.Title,
			deadlineCell(w),
			valueCell(w),
		})
	}
	return rows
}

// runRows renders run history, newest first
func runRows(runs []schedule.Run) pterm.TableData {
	rows := pterm.TableData{{"Run", "Started", "Capacity", "Trend", "Scheduled", "Rejected", "Total"}}
	for _, r := range runs {
		trend := "normal"
		if r.TrendHigh {
			trend = "high"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Capacity),
			fmt.Sprintf("%s (mean %s)", trend, r.RecentMean.StringFixed(2)),
			strconv.Itoa(r.ScheduledCount),
			strconv.Itoa(r.RejectedCount),
			r.TotalValue.String(),
		})
	}
	return rows
}
