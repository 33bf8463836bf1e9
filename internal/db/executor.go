// CLAUDE:SUMMARY Query executor — parameterized statement execution, record insert with RETURNING, equality-filtered select; driver errors become Result failures
package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// identRe validates table and column identifiers used in built statements.
// Values are always bound as parameters; only identifiers are interpolated.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Result is the tagged outcome of a database operation. Exactly one of the
// success payload or the error message is meaningful; there is no partial
// success. Driver failures are carried here, never as transport errors.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ExecuteQuery runs a single SQL statement with positional parameters and
// returns all resulting rows verbatim. No statement-type restriction is
// enforced: DDL and destructive statements run as given.
func (db *DB) ExecuteQuery(ctx context.Context, query string, params []any) Result {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return failure("%v", err)
	}
	defer rows.Close()

	out, err := scanRowMaps(rows)
	if err != nil {
		return failure("%v", err)
	}
	return Result{Success: true, Data: out}
}

// InsertRecord builds a parameterized INSERT from the mapping's keys and
// returns the inserted row, including generated columns.
func (db *DB) InsertRecord(ctx context.Context, table string, data map[string]any) Result {
	if !identRe.MatchString(table) {
		return failure("invalid table name: %q", table)
	}
	if len(data) == 0 {
		return failure("no columns to insert")
	}

	cols := make([]string, 0, len(data))
	for c := range data {
		if !identRe.MatchString(c) {
			return failure("invalid column name: %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		args[i] = data[c]
		marks[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return failure("%v", err)
	}
	defer rows.Close()

	out, err := scanRowMaps(rows)
	if err != nil {
		return failure("%v", err)
	}
	if len(out) == 0 {
		return failure("insert returned no row")
	}
	return Result{Success: true, Data: out[0]}
}

// GetRecords builds a parameterized SELECT with equality-only conjunctive
// filtering over where and an optional row cap. A limit of 0 is honored and
// yields an empty list.
func (db *DB) GetRecords(ctx context.Context, table string, where map[string]any, limit *int) Result {
	if !identRe.MatchString(table) {
		return failure("invalid table name: %q", table)
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(table)

	var args []any
	if len(where) > 0 {
		cols := make([]string, 0, len(where))
		for c := range where {
			if !identRe.MatchString(c) {
				return failure("invalid column name: %q", c)
			}
			cols = append(cols, c)
		}
		sort.Strings(cols)

		conds := make([]string, len(cols))
		for i, c := range cols {
			conds[i] = c + " = ?"
			args = append(args, where[c])
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *limit)
	}

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return failure("%v", err)
	}
	defer rows.Close()

	out, err := scanRowMaps(rows)
	if err != nil {
		return failure("%v", err)
	}
	return Result{Success: true, Data: out}
}

// scanRowMaps reads every row into an ordered list of column-name → value
// maps. BLOB values are converted to strings so the maps serialize cleanly.
func scanRowMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
