package schedule

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/teranos/promanage/item"
)

// Plan is the full outcome of placing a snapshot of items into slots
type Plan struct {
	Capacity int

	// Items holds every input item, in input order, with its final status.
	Items []item.WorkItem

	// Slots has one entry per slot; nil entries are empty. Each non-nil entry
	// points into Items. Slots is nil when Capacity is 0.
	Slots []*item.WorkItem

	// Scheduled lists the placed items in slot order, not rank order.
	Scheduled []item.WorkItem

	TotalValue decimal.Decimal
}

// Compute places items into capacity slots and returns the resulting plan.
// The input is not modified.
//
// Every item is reset to PENDING; items that are not schedulable become
// REJECTED. The rest are ranked by value, highest first, keeping input order
// among equal values, and each is placed in the latest free slot at or before
// its deadline. Valid items that find no free slot become REJECTED.
func Compute(items []item.WorkItem, capacity int) Plan {
	if capacity < 0 {
		capacity = 0
	}

	out := make([]item.WorkItem, len(items))
	ranked := make([]int, 0, len(items))
	for i, w := range items {
		out[i] = w.Clone()
		out[i].Status = item.StatusPending
		if !out[i].Schedulable() {
			out[i].Status = item.StatusRejected
			continue
		}
		ranked = append(ranked, i)
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return out[ranked[a]].Value.Decimal.GreaterThan(out[ranked[b]].Value.Decimal)
	})

	var slots []*item.WorkItem
	if capacity > 0 {
		slots = make([]*item.WorkItem, capacity)
		for _, idx := range ranked {
			for s := SlotFor(*out[idx].Deadline, capacity); s >= 0; s-- {
				if slots[s] == nil {
					slots[s] = &out[idx]
					out[idx].Status = item.StatusScheduled
					break
				}
			}
		}
	}

	for _, idx := range ranked {
		if out[idx].Status == item.StatusPending {
			out[idx].Status = item.StatusRejected
		}
	}

	scheduled := make([]item.WorkItem, 0, capacity)
	for _, w := range slots {
		if w != nil {
			scheduled = append(scheduled, *w)
		}
	}

	return Plan{
		Capacity:   capacity,
		Items:      out,
		Slots:      slots,
		Scheduled:  scheduled,
		TotalValue: item.TotalValue(scheduled),
	}
}

// SlotOf returns the 0-based slot index holding the item with the given id
func (p Plan) SlotOf(id int64) (int, bool) {
	for i, w := range p.Slots {
		if w != nil && w.ID == id {
			return i, true
		}
	}
	return -1, false
}

// RejectedCount counts items that ended the run REJECTED
func (p Plan) RejectedCount() int {
	n := 0
	for _, w := range p.Items {
		if w.Status == item.StatusRejected {
			n++
		}
	}
	return n
}

// MaxDeadline returns the largest deadline among schedulable items, or 0
func MaxDeadline(items []item.WorkItem) int {
	maxDeadline := 0
	for _, w := range items {
		if w.Schedulable() && *w.Deadline > maxDeadline {
			maxDeadline = *w.Deadline
		}
	}
	return maxDeadline
}
