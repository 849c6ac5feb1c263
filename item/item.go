// Package item defines the work item the scheduler places into slots.
package item

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/internal/util"
)

// Status is the scheduling outcome of a work item
type Status string

const (
	StatusPending   Status = "PENDING"   // default, and the reset state at the start of every run
	StatusScheduled Status = "SCHEDULED" // occupies a slot in the latest run
	StatusRejected  Status = "REJECTED"  // invalid data, or valid but unplaceable
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusRejected:
		return true
	}
	return false
}

// ParseStatus converts a stored status string, tolerating case differences
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", errors.Newf("unknown item status %q", s)
	}
	return status, nil
}

// WorkItem is one candidate for a scheduling slot.
//
// Deadline is the latest 1-based slot the item may occupy; nil means missing.
// Value is an exact decimal; Valid=false means missing.
type WorkItem struct {
	ID        int64               `json:"id"`
	Title     string              `json:"title"`
	Deadline  *int                `json:"deadline"`
	Value     decimal.NullDecimal `json:"value"`
	CreatedAt Date                `json:"createdAt"`
	Status    Status              `json:"status"`
}

// Schedulable reports whether the item carries the data a run needs:
// a value and a deadline of at least 1.
func (w WorkItem) Schedulable() bool {
	return w.Value.Valid && util.Deref(w.Deadline, 0) >= 1
}

// Clone returns a copy that shares no pointers with w
func (w WorkItem) Clone() WorkItem {
	c := w
	if w.Deadline != nil {
		d := *w.Deadline
		c.Deadline = &d
	}
	return c
}

// ValueOrZero returns the value, or zero when it is missing
func (w WorkItem) ValueOrZero() decimal.Decimal {
	if !w.Value.Valid {
		return decimal.Zero
	}
	return w.Value.Decimal
}

// ValidateNew checks a record submitted for creation.
// Missing deadline or value is accepted: such items are rejected by the next run.
func ValidateNew(w WorkItem) error {
	if strings.TrimSpace(w.Title) == "" {
		return errors.NewInvalidRequestError("title is required")
	}
	if w.Value.Valid && w.Value.Decimal.IsNegative() {
		return errors.NewInvalidRequestError("value must be nonnegative, got %s", w.Value.Decimal.String())
	}
	return nil
}

// PrepareNew validates a submitted record and shapes it for insertion:
// the id is cleared, the status forced to PENDING, and a missing creation
// date becomes today.
func PrepareNew(w WorkItem, today Date) (WorkItem, error) {
	if err := ValidateNew(w); err != nil {
		return WorkItem{}, err
	}
	w = w.Clone()
	w.ID = 0
	w.Title = strings.TrimSpace(w.Title)
	w.Status = StatusPending
	if w.CreatedAt.IsZero() {
		w.CreatedAt = today
	}
	return w, nil
}

// TotalValue sums the values of items using exact decimal arithmetic.
// Missing values contribute zero.
func TotalValue(items []WorkItem) decimal.Decimal {
	total := decimal.Zero
	for _, w := range items {
		if w.Value.Valid {
			total = total.Add(w.Value.Decimal)
		}
	}
	return total
}
