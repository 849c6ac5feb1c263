package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/promanage/internal/util"
	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/schedule"
)

// execute runs args against a fresh root carrying the global flags
func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := &cobra.Command{Use: "promanage", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().CountP("verbose", "v", "")
	root.PersistentFlags().Bool("json", false, "")
	root.PersistentFlags().String("config", "", "")
	root.AddCommand(AmCmd, DbCmd, ItemCmd, ScheduleCmd, VersionCmd)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	content := "[database]\npath = \"" + filepath.Join(dir, "promanage.db") + "\"\n\n[scheduler]\nbase_capacity = 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestScheduleRunThroughCLI(t *testing.T) {
	cfg := writeConfig(t)

	execute(t, "item", "add", "--config", cfg, "--title", "Website", "--deadline", "1", "--value", "120.50")

	out := execute(t, "schedule", "run", "--config", cfg, "--json")
	var result struct {
		Run              *schedule.Run   `json:"run"`
		SelectedProjects []item.WorkItem `json:"selectedProjects"`
		TotalProfit      string          `json:"totalProfit"`
		Capacity         int             `json:"capacity"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, "120.5", result.TotalProfit)
	assert.Equal(t, 3, result.Capacity)
	require.Len(t, result.SelectedProjects, 1)
	assert.Equal(t, "Website", result.SelectedProjects[0].Title)
	require.NotNil(t, result.Run)

	out = execute(t, "db", "runs", "--config", cfg, "--json")
	var runs []schedule.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs), out)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Run.ID, runs[0].ID)
	assert.Equal(t, 1, runs[0].ScheduledCount)
}

func TestBuildItem(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "add"}
		c.Flags().IntVar(&itemDeadline, "deadline", 0, "")
		return c
	}

	t.Run("unset flags stay missing", func(t *testing.T) {
		itemTitle, itemValue, itemCreated = "x", "", ""
		w, err := buildItem(newCmd())
		require.NoError(t, err)
		assert.Nil(t, w.Deadline)
		assert.False(t, w.Value.Valid)
		assert.True(t, w.CreatedAt.IsZero())
	})

	t.Run("all set", func(t *testing.T) {
		c := newCmd()
		require.NoError(t, c.Flags().Set("deadline", "0"))
		itemTitle, itemValue, itemCreated = "x", "99.90", "2026-10-01"
		w, err := buildItem(c)
		require.NoError(t, err)
		require.NotNil(t, w.Deadline)
		assert.Equal(t, 0, *w.Deadline)
		assert.Equal(t, "99.9", w.Value.Decimal.String())
		assert.Equal(t, "2026-10-01", w.CreatedAt.String())
	})

	t.Run("bad value", func(t *testing.T) {
		itemTitle, itemValue, itemCreated = "x", "lots", ""
		_, err := buildItem(newCmd())
		assert.Error(t, err)
	})

	t.Run("bad date", func(t *testing.T) {
		itemTitle, itemValue, itemCreated = "x", "", "10/01/2026"
		_, err := buildItem(newCmd())
		assert.Error(t, err)
	})
}

func TestRows(t *testing.T) {
	items := []item.WorkItem{
		{ID: 2, Title: "b", Deadline: util.Ptr(1), Value: decimal.NewNullDecimal(decimal.NewFromInt(200)), Status: item.StatusScheduled},
		{ID: 5, Title: "e", Status: item.StatusRejected},
	}

	rows := itemRows(items)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2", "b", "1", "200", "-", "SCHEDULED"}, rows[1])
	assert.Equal(t, []string{"5", "e", "-", "-", "-", "REJECTED"}, rows[2])

	slots := slotRows(items[:1])
	assert.Equal(t, []string{"1", "2", "b", "1", "200"}, slots[1])

	assert.Len(t, filterStatus(items, item.StatusRejected), 1)
	assert.Empty(t, filterStatus(items, item.StatusPending))

	runs := runRows([]schedule.Run{{
		ID:             "r1",
		StartedAt:      time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local),
		Capacity:       4,
		TrendHigh:      true,
		RecentMean:     decimal.RequireFromString("15000"),
		ScheduledCount: 2,
		RejectedCount:  1,
		TotalValue:     decimal.NewFromInt(300),
	}})
	assert.Equal(t, []string{"r1", "2026-10-19 09:00:00", "4", "high (mean 15000.00)", "2", "1", "300"}, runs[1])
}
