package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MaxRows         = 500
	MaxDisplayChars = 600
)

var ErrQueryNotAllowed = errors.New("query not allowed")

var allowedPrefixes = []string{"select", "with", "explain"}

// IsQueryAllowed is the read-only guard applied to every user or model
// supplied statement. The returned string explains a rejection.
func IsQueryAllowed(query string) (bool, string) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false, "Query is empty"
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(q, p) {
			return true, ""
		}
	}
	return false, "Only read-only statements starting with " + strings.Join(allowedPrefixes, ", ") + " are allowed."
}

// Cell is one rendered value. Full is the complete text, Display is cut to
// MaxDisplayChars runes.
type Cell struct {
	Display   string `json:"display"`
	Full      string `json:"full"`
	Truncated bool   `json:"truncated"`
}

type Result struct {
	Columns   []string          `json:"columns"`
	Rows      []map[string]Cell `json:"rows"`
	RowCount  int               `json:"row_count"`
	Truncated bool              `json:"truncated"`
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return renderText(string(x))
	case string:
		return renderText(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// renderText pretty prints JSON objects and arrays stored in text columns.
func renderText(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{") && !strings.HasPrefix(t, "[") {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(t), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

func NewCell(v any) Cell {
	full := render(v)
	r := []rune(full)
	if len(r) <= MaxDisplayChars {
		return Cell{Display: full, Full: full}
	}
	return Cell{Display: string(r[:MaxDisplayChars]) + "…", Full: full, Truncated: true}
}

// Query runs a read-only statement. Every row is counted but only the first
// maxRows are returned.
func (s *Store) Query(ctx context.Context, query string, maxRows int) (*Result, error) {
	if ok, reason := IsQueryAllowed(query); !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotAllowed, reason)
	}
	if maxRows <= 0 {
		maxRows = MaxRows
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // never committed

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols, Rows: []map[string]Cell{}}
	for rows.Next() {
		res.RowCount++
		if res.RowCount > maxRows {
			continue
		}

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]Cell, len(cols))
		for i, c := range cols {
			row[c] = NewCell(vals[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	res.Truncated = res.RowCount > maxRows
	return res, nil
}
