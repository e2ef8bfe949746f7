package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"airsupport/internal/models"
)

// SearchReservations returns rows of the kind's table matching every given
// filter. Range and price-tier arguments are carried on the filter but not
// applied to the query.
func (db *DB) SearchReservations(ctx context.Context, kind models.Kind, filter models.SearchFilter) ([]models.Row, error) {
	schema, err := models.SchemaFor(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	query, args := buildSearchQuery(schema, filter)

	if filter.PriceTier != "" || len(filter.Range) > 0 {
		db.logger.Debug().
			Str("kind", string(kind)).
			Str("price_tier", filter.PriceTier).
			Interface("range", filter.Range).
			Msg("search arguments accepted but not applied")
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", schema.Table, err)
	}
	defer rows.Close()

	cols, values, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", schema.Table, err)
	}

	result := make([]models.Row, 0, len(values))
	for _, v := range values {
		row := make(models.Row, len(cols))
		for i, c := range cols {
			row[c] = v[i]
		}
		result = append(result, row)
	}
	return result, nil
}

func buildSearchQuery(schema models.KindSchema, filter models.SearchFilter) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT * FROM %s WHERE 1=1", quoteIdent(schema.Table))

	for _, col := range schema.TextColumns {
		if v := filter.Text[col]; v != "" {
			fmt.Fprintf(&b, " AND %s LIKE ?", quoteIdent(col))
			args = append(args, "%"+v+"%")
		}
	}

	if schema.KeywordColumn != "" && filter.Keywords != "" {
		var clauses []string
		for _, kw := range strings.Split(filter.Keywords, ",") {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			clauses = append(clauses, quoteIdent(schema.KeywordColumn)+" LIKE ?")
			args = append(args, "%"+kw+"%")
		}
		if len(clauses) > 0 {
			b.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
		}
	}

	return b.String(), args
}

// SetBooked flips the booked flag of one row.
func (db *DB) SetBooked(ctx context.Context, kind models.Kind, id int64, booked bool) (models.OpResult, error) {
	schema, err := models.SchemaFor(kind)
	if err != nil {
		return models.OpResult{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	flag := models.BookedFalse
	if booked {
		flag = models.BookedTrue
	}

	res, err := db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET booked = ? WHERE id = ?", quoteIdent(schema.Table)), flag, id)
	if err != nil {
		return models.OpResult{}, fmt.Errorf("failed to set booked on %s %d: %w", schema.Table, id, err)
	}
	return opResult(kind, id, res)
}

// UpdateReservation sets the provided columns of one row in a single
// statement. Empty values are treated as not provided.
func (db *DB) UpdateReservation(ctx context.Context, kind models.Kind, id int64, fields map[string]string) (models.OpResult, error) {
	schema, err := models.SchemaFor(kind)
	if err != nil {
		return models.OpResult{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	for col := range fields {
		if !schema.Updatable(col) {
			return models.OpResult{}, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, schema.Table, col)
		}
	}

	var (
		sets []string
		args []any
	)
	for _, col := range schema.UpdateColumns {
		if v := fields[col]; v != "" {
			sets = append(sets, quoteIdent(col)+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) == 0 {
		return models.OpResult{Kind: kind, ID: id}, ErrNoChanges
	}
	args = append(args, id)

	res, err := db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quoteIdent(schema.Table), strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return models.OpResult{}, fmt.Errorf("failed to update %s %d: %w", schema.Table, id, err)
	}
	return opResult(kind, id, res)
}

// ReservationTable returns every row of the kind's table ordered by id.
func (db *DB) ReservationTable(ctx context.Context, kind models.Kind) (*models.Table, error) {
	schema, err := models.SchemaFor(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY id", quoteIdent(schema.Table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", schema.Table, err)
	}
	defer rows.Close()

	cols, values, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", schema.Table, err)
	}
	return &models.Table{Kind: kind, Columns: cols, Rows: values}, nil
}

func opResult(kind models.Kind, id int64, res sql.Result) (models.OpResult, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return models.OpResult{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return models.OpResult{Kind: kind, ID: id, Affected: n}, nil
}

// scanRows reads every row generically. Text comes back from the driver as
// []byte for untyped columns and is converted to string.
func scanRows(rows *sql.Rows) ([]string, [][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return cols, out, rows.Err()
}
