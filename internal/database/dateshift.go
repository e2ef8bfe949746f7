package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ShiftPlan names the column that anchors the shift and every column it is
// applied to.
type ShiftPlan struct {
	ReferenceTable  string
	ReferenceColumn string
	Columns         map[string][]string
}

// ShiftResult describes a completed shift. Applied is false when the
// reference column held no parsable timestamp.
type ShiftResult struct {
	Applied   bool
	Offset    time.Duration
	Reference time.Time
	Updated   int64
	Skipped   int64
}

// Layouts are tried in order. Fractional seconds are accepted after the
// seconds field even though none of the layouts spell them out.
var timestampLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

var fractionRe = regexp.MustCompile(`:\d{2}[.,](\d+)`)

type timestampFormat struct {
	layout string
	frac   int
	zulu   bool
}

func parseTimestamp(s string) (time.Time, timestampFormat, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, timestampFormat{}, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		f := timestampFormat{layout: layout, zulu: strings.HasSuffix(s, "Z")}
		if m := fractionRe.FindStringSubmatch(s); m != nil {
			f.frac = len(m[1])
		}
		return t, f, true
	}
	return time.Time{}, timestampFormat{}, false
}

func (f timestampFormat) format(t time.Time) string {
	layout := f.layout
	if f.frac > 0 {
		layout = strings.Replace(layout, ":05", ":05."+strings.Repeat("0", f.frac), 1)
	}
	if !f.zulu {
		layout = strings.Replace(layout, "Z07", "-07", 1)
	}
	return t.Format(layout)
}

// ShiftDates moves every configured timestamp forward by the distance between
// now and the latest reference timestamp. The rewrite is one transaction.
func ShiftDates(ctx context.Context, db *sql.DB, plan ShiftPlan, now time.Time, logger *zerolog.Logger) (*ShiftResult, error) {
	ref, ok, err := latestTimestamp(ctx, db, plan.ReferenceTable, plan.ReferenceColumn)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn().
			Str("table", plan.ReferenceTable).
			Str("column", plan.ReferenceColumn).
			Msg("No valid reference timestamp, dates left unchanged")
		return &ShiftResult{}, nil
	}

	res := &ShiftResult{
		Applied:   true,
		Reference: ref,
		Offset:    now.Sub(ref).Truncate(time.Second),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin shift transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := make([]string, 0, len(plan.Columns))
	for table := range plan.Columns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		exists, err := tableExists(ctx, tx, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			logger.Debug().Str("table", table).Msg("Shift table not present, skipping")
			continue
		}
		present, err := tableColumns(ctx, tx, table)
		if err != nil {
			return nil, err
		}
		for _, column := range plan.Columns[table] {
			if !present[column] {
				logger.Warn().Str("table", table).Str("column", column).Msg("Shift column not present, skipping")
				continue
			}
			updated, skipped, err := shiftColumn(ctx, tx, table, column, res.Offset)
			if err != nil {
				return nil, err
			}
			res.Updated += updated
			res.Skipped += skipped
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit shift: %w", err)
	}

	logger.Info().
		Time("reference", ref).
		Dur("offset", res.Offset).
		Int64("updated", res.Updated).
		Int64("skipped", res.Skipped).
		Msg("Dates shifted")
	return res, nil
}

// latestTimestamp reads values as text: the driver turns TIMESTAMP columns
// it cannot parse into zero times, which would corrupt the maximum.
func latestTimestamp(ctx context.Context, q queryer, table, column string) (time.Time, bool, error) {
	exists, err := tableExists(ctx, q, table)
	if err != nil || !exists {
		return time.Time{}, false, err
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT CAST(%s AS TEXT) FROM %s",
		quoteIdent(column), quoteIdent(table)))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var (
		latest time.Time
		found  bool
	)
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return time.Time{}, false, fmt.Errorf("failed to scan %s.%s: %w", table, column, err)
		}
		if !v.Valid {
			continue
		}
		t, _, ok := parseTimestamp(v.String)
		if !ok {
			continue
		}
		if !found || t.After(latest) {
			latest, found = t, true
		}
	}
	return latest, found, rows.Err()
}

type pendingValue struct {
	rowid int64
	value string
}

func shiftColumn(ctx context.Context, tx *sql.Tx, table, column string, offset time.Duration) (updated, skipped int64, err error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT rowid, CAST(%s AS TEXT) FROM %s",
		quoteIdent(column), quoteIdent(table)))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}

	var pending []pendingValue
	for rows.Next() {
		var (
			rowid int64
			v     sql.NullString
		)
		if err := rows.Scan(&rowid, &v); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("failed to scan %s.%s: %w", table, column, err)
		}
		if !v.Valid {
			continue
		}
		t, f, ok := parseTimestamp(v.String)
		if !ok {
			skipped++
			continue
		}
		pending = append(pending, pendingValue{rowid: rowid, value: f.format(t.Add(offset))})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET %s = ? WHERE rowid = ?",
		quoteIdent(table), quoteIdent(column)))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare update of %s.%s: %w", table, column, err)
	}
	defer stmt.Close()

	for _, p := range pending {
		if _, err := stmt.ExecContext(ctx, p.value, p.rowid); err != nil {
			return 0, 0, fmt.Errorf("failed to update %s.%s: %w", table, column, err)
		}
		updated++
	}
	return updated, skipped, nil
}
