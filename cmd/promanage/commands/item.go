package commands

import (
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/teranos/promanage/display"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/item"
)

// ItemCmd manages work items
var ItemCmd = &cobra.Command{
	Use:     "item",
	Aliases: []string{"project"},
	Short:   "Add and list work items",
	Long: `Add and list work items.

An item needs a title. Deadline is the latest 1-based slot it may take and
value is an exact decimal; items missing either are kept but rejected by the
next run.

Examples:
  promanage item add --title "Website" --deadline 2 --value 1200.50
  promanage item ls
  promanage item ls --status SCHEDULED`,
}

var itemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a work item (status PENDING)",
	RunE:  runItemAdd,
}

var itemLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List work items ordered by id",
	RunE:    runItemLs,
}

var (
	itemTitle    string
	itemDeadline int
	itemValue    string
	itemCreated  string
	itemStatus   string
)

func init() {
	itemAddCmd.Flags().StringVar(&itemTitle, "title", "", "Item title (required)")
	itemAddCmd.Flags().IntVar(&itemDeadline, "deadline", 0, "Latest slot the item may occupy (omit for none)")
	itemAddCmd.Flags().StringVar(&itemValue, "value", "", "Item value as a decimal (omit for none)")
	itemAddCmd.Flags().StringVar(&itemCreated, "created", "", "Creation date YYYY-MM-DD (default today)")
	itemAddCmd.MarkFlagRequired("title")

	itemLsCmd.Flags().StringVar(&itemStatus, "status", "", "Only items with this status (PENDING, SCHEDULED, REJECTED)")

	ItemCmd.AddCommand(itemAddCmd)
	ItemCmd.AddCommand(itemLsCmd)
}

// buildItem turns add flags into a record; unset flags stay missing
func buildItem(cmd *cobra.Command) (item.WorkItem, error) {
	w := item.WorkItem{Title: itemTitle}
	if cmd.Flags().Changed("deadline") {
		d := itemDeadline
		w.Deadline = &d
	}
	if itemValue != "" {
		v, err := decimal.NewFromString(itemValue)
		if err != nil {
			return item.WorkItem{}, errors.NewInvalidRequestError("value %q is not a decimal", itemValue)
		}
		w.Value = decimal.NewNullDecimal(v)
	}
	if itemCreated != "" {
		d, err := item.ParseDate(itemCreated)
		if err != nil {
			return item.WorkItem{}, errors.NewInvalidRequestError("created %q is not a YYYY-MM-DD date", itemCreated)
		}
		w.CreatedAt = d
	}
	return w, nil
}

func runItemAdd(cmd *cobra.Command, args []string) error {
	w, err := buildItem(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.store.Add(cmd.Context(), w)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), created)
	}
	pterm.Success.Printfln("Added item %d %q", created.ID, created.Title)
	if !created.Schedulable() {
		pterm.Warning.Println("Item has no usable deadline or value and will be rejected by the next run")
	}
	return nil
}

func runItemLs(cmd *cobra.Command, args []string) error {
	var filter item.Status
	if itemStatus != "" {
		s, err := item.ParseStatus(itemStatus)
		if err != nil {
			return err
		}
		filter = s
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.store.LoadAll(cmd.Context())
	if err != nil {
		return err
	}
	if filter != "" {
		items = filterStatus(items, filter)
	}

	if display.ShouldOutputJSON(cmd) {
		if items == nil {
			items = []item.WorkItem{}
		}
		return display.OutputJSON(cmd.OutOrStdout(), items)
	}
	if len(items) == 0 {
		pterm.Info.Println("No items")
		return nil
	}
	return display.Table(cmd.OutOrStdout(), itemRows(items))
}

func filterStatus(items []item.WorkItem, status item.Status) []item.WorkItem {
	var out []item.WorkItem
	for _, w := range items {
		if w.Status == status {
			out = append(out, w)
		}
	}
	return out
}
