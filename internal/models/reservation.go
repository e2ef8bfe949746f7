package models

// SearchFilter carries the optional search arguments. Empty strings mean "not given".
type SearchFilter struct {
	Text     map[string]string
	Keywords string
	// Range holds accepted-but-unapplied date-range arguments, keyed by argument name.
	Range     map[string]string
	PriceTier string
}

// Row is one search result: column name to value.
type Row map[string]any

// OpResult is the outcome of a mutating reservation call.
type OpResult struct {
	Kind     Kind
	ID       int64
	Affected int64
}

// OK reports whether the statement touched a row.
func (r OpResult) OK() bool {
	return r.Affected > 0
}

// Table is a whole reservation table with its column order preserved, used by exports.
type Table struct {
	Kind    Kind
	Columns []string
	Rows    [][]any
}
