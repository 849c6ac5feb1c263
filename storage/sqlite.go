// Package storage persists work items and run history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/teranos/promanage/db"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/logger"
	"github.com/teranos/promanage/schedule"
)

const (
	selectItems = `SELECT id, title, deadline, value, created_at, status FROM work_items ORDER BY id`
	selectItem  = `SELECT id, title, deadline, value, created_at, status FROM work_items WHERE id = ?`
	insertItem  = `INSERT INTO work_items (title, deadline, value, created_at, status) VALUES (?, ?, ?, ?, ?)`
	updateItem  = `UPDATE work_items SET status = ? WHERE id = ?`
	insertRun   = `INSERT INTO schedule_runs (id, started_at, capacity, trend_high, recent_mean, threshold, scheduled_count, rejected_count, total_value) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectRuns  = `SELECT id, started_at, capacity, trend_high, recent_mean, threshold, scheduled_count, rejected_count, total_value FROM schedule_runs ORDER BY started_at DESC, rowid DESC`
)

// SQLStore implements schedule.Catalog on a migrated SQLite database
type SQLStore struct {
	db      *sql.DB
	logger  *zap.SugaredLogger
	timeNow func() time.Time // Injectable for testing
}

var _ schedule.Catalog = (*SQLStore)(nil)

// NewSQLStore wraps db. A nil logger uses the "storage" component logger.
func NewSQLStore(db *sql.DB, log *zap.SugaredLogger) *SQLStore {
	if log == nil {
		log = logger.ComponentLogger("storage")
	}
	return &SQLStore{db: db, logger: log, timeNow: time.Now}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (item.WorkItem, error) {
	var (
		w        item.WorkItem
		deadline sql.NullInt64
		value    sql.NullString
		created  string
		status   string
	)
	if err := row.Scan(&w.ID, &w.Title, &deadline, &value, &created, &status); err != nil {
		return w, err
	}

	if deadline.Valid {
		d := int(deadline.Int64)
		w.Deadline = &d
	}
	if value.Valid {
		v, err := decimal.NewFromString(value.String)
		if err != nil {
			return w, errors.Wrapf(err, "item %d has malformed value %q", w.ID, value.String)
		}
		w.Value = decimal.NewNullDecimal(v)
	}
	if created != "" {
		d, err := item.ParseDate(created)
		if err != nil {
			return w, errors.Wrapf(err, "item %d has malformed created_at", w.ID)
		}
		w.CreatedAt = d
	}
	s, err := item.ParseStatus(status)
	if err != nil {
		return w, errors.Wrapf(err, "item %d", w.ID)
	}
	w.Status = s
	return w, nil
}

// LoadAll returns every item ordered by id
func (s *SQLStore) LoadAll(ctx context.Context) ([]item.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, selectItems)
	if err != nil {
		if db.IsDatabaseClosed(err) {
			return nil, errors.Wrap(db.ErrDatabaseClosed, "failed to query work items")
		}
		return nil, errors.Wrap(err, "failed to query work items")
	}
	defer rows.Close()

	items := make([]item.WorkItem, 0)
	for rows.Next() {
		w, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan work item")
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate work items")
	}
	return items, nil
}

// Get returns one item or an ErrNotFound error
func (s *SQLStore) Get(ctx context.Context, id int64) (item.WorkItem, error) {
	w, err := scanItem(s.db.QueryRowContext(ctx, selectItem, id))
	if errors.Is(err, sql.ErrNoRows) {
		return item.WorkItem{}, errors.NewNotFoundError("work item %d", id)
	}
	if err != nil {
		return item.WorkItem{}, errors.Wrapf(err, "failed to load work item %d", id)
	}
	return w, nil
}

// Add validates w and inserts it as PENDING, returning it with its new id
func (s *SQLStore) Add(ctx context.Context, w item.WorkItem) (item.WorkItem, error) {
	w, err := item.PrepareNew(w, item.NewDate(s.timeNow()))
	if err != nil {
		return item.WorkItem{}, err
	}

	var deadline sql.NullInt64
	if w.Deadline != nil {
		deadline = sql.NullInt64{Int64: int64(*w.Deadline), Valid: true}
	}
	var value sql.NullString
	if w.Value.Valid {
		value = sql.NullString{String: w.Value.Decimal.String(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, insertItem, w.Title, deadline, value, w.CreatedAt.String(), string(w.Status))
	if err != nil {
		return item.WorkItem{}, errors.Wrap(err, "failed to insert work item")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return item.WorkItem{}, errors.Wrap(err, "failed to read new work item id")
	}
	w.ID = id

	s.logger.Infow("Work item added",
		logger.FieldItemID, id,
		"title", w.Title,
	)
	return w, nil
}

// SaveAll writes every item's status and records run in one transaction.
// Any failure rolls the whole batch back.
func (s *SQLStore) SaveAll(ctx context.Context, items []item.WorkItem, run schedule.Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin save transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warnw("Rollback failed", logger.FieldError, rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, updateItem)
	if err != nil {
		return errors.Wrap(err, "failed to prepare status update")
	}
	defer stmt.Close()

	for _, w := range items {
		if !w.Status.Valid() {
			return errors.Newf("item %d has invalid status %q", w.ID, w.Status)
		}
		if _, err = stmt.ExecContext(ctx, string(w.Status), w.ID); err != nil {
			return errors.Wrapf(err, "failed to update status of item %d", w.ID)
		}
	}

	if _, err = tx.ExecContext(ctx, insertRun,
		run.ID,
		run.StartedAt.UTC(),
		run.Capacity,
		run.TrendHigh,
		run.RecentMean.String(),
		run.Threshold.String(),
		run.ScheduledCount,
		run.RejectedCount,
		run.TotalValue.String(),
	); err != nil {
		return errors.Wrapf(err, "failed to record run %s", run.ID)
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit save transaction")
	}

	s.logger.Debugw("Saved scheduling run",
		logger.FieldRunID, run.ID,
		logger.FieldCount, len(items),
	)
	return nil
}

// ListRuns returns recorded runs newest first; limit <= 0 means all
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]schedule.Run, error) {
	query := selectRuns
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query schedule runs")
	}
	defer rows.Close()

	runs := make([]schedule.Run, 0)
	for rows.Next() {
		var r schedule.Run
		var mean, threshold, total string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Capacity, &r.TrendHigh,
			&mean, &threshold, &r.ScheduledCount, &r.RejectedCount, &total); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule run")
		}
		if r.RecentMean, err = decimal.NewFromString(mean); err != nil {
			return nil, errors.Wrapf(err, "run %s has malformed recent_mean", r.ID)
		}
		if r.Threshold, err = decimal.NewFromString(threshold); err != nil {
			return nil, errors.Wrapf(err, "run %s has malformed threshold", r.ID)
		}
		if r.TotalValue, err = decimal.NewFromString(total); err != nil {
			return nil, errors.Wrapf(err, "run %s has malformed total_value", r.ID)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate schedule runs")
	}
	return runs, nil
}
