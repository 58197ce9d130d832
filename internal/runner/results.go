package runner

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"querybench/internal/domain"
)

// resultStore accumulates result sets from result-bearing executions
// for printing at the end of the run. Safe for concurrent use — async
// completions and the scheduler thread both append.
type resultStore struct {
	mu        sync.Mutex
	sets      []*ResultSet
	rowsLimit int
}

func newResultStore(rowsLimit int) *resultStore {
	return &resultStore{rowsLimit: rowsLimit}
}

// add appends a result set, truncating it to the configured row limit.
func (s *resultStore) add(set *ResultSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rowsLimit > 0 && len(set.Rows) > s.rowsLimit {
		set.Rows = set.Rows[:s.rowsLimit]
		set.RowCount = len(set.Rows)
		set.Truncated = true
	}
	s.sets = append(s.sets, set)
}

func (s *resultStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

// print renders every collected result set to w in the given format.
func (s *resultStore) print(w io.Writer, format domain.ResultFormat, pretty bool) error {
	s.mu.Lock()
	sets := s.sets
	s.mu.Unlock()

	if w == nil {
		return nil
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}

	for _, set := range sets {
		switch format {
		case domain.FormatFullJSON:
			if err := enc.Encode(set); err != nil {
				return fmt.Errorf("encode result set: %w", err)
			}
		case domain.FormatRows, "":
			for _, row := range set.Rows {
				obj := make(map[string]interface{}, len(set.Columns))
				for i, col := range set.Columns {
					if i < len(row) {
						obj[col] = row[i]
					}
				}
				if err := enc.Encode(obj); err != nil {
					return fmt.Errorf("encode result row: %w", err)
				}
			}
		default:
			return fmt.Errorf("unsupported result format %q", format)
		}
	}
	return nil
}

// scanRows drains *sql.Rows into a ResultSet. Byte slices become
// strings for JSON serialization.
func scanRows(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultRows [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ResultSet{
		Columns:  cols,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
