package wpca

import (
	"encoding/csv"
	"fmt"
	"io"
)

// metadata is the sample sheet: tab-delimited, first column holds the
// sample id, remaining columns are free-form annotations used for
// filtering and plot coloring.
type metadata struct {
	columns []string
	ids     []string
	rows    []map[string]string
}

func readMetadata(r io.Reader) (*metadata, error) {
	csvr := csv.NewReader(r)
	csvr.Comma = '\t'
	csvr.LazyQuotes = true
	records, err := csvr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("metadata has no sample rows")
	}
	m := &metadata{columns: records[0]}
	seen := make(map[string]bool)
	for _, record := range records[1:] {
		id := record[0]
		if seen[id] {
			return nil, fmt.Errorf("duplicate sample id %q in metadata", id)
		}
		seen[id] = true
		row := make(map[string]string, len(m.columns))
		for i, col := range m.columns {
			row[col] = record[i]
		}
		m.ids = append(m.ids, id)
		m.rows = append(m.rows, row)
	}
	return m, nil
}

// filter keeps only the samples whose value in the named column is one
// of the given values. An empty column name keeps everything.
func (m *metadata) filter(column string, values []string) error {
	if column == "" {
		return nil
	}
	found := false
	for _, col := range m.columns {
		if col == column {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("metadata has no column %q", column)
	}
	keep := make(map[string]bool, len(values))
	for _, v := range values {
		keep[v] = true
	}
	var ids []string
	var rows []map[string]string
	for i, id := range m.ids {
		if keep[m.rows[i][column]] {
			ids = append(ids, id)
			rows = append(rows, m.rows[i])
		}
	}
	m.ids, m.rows = ids, rows
	return nil
}

// intersect drops samples that the variant file does not carry,
// preserving metadata order. The surviving order is the sample order
// of every downstream table.
func (m *metadata) intersect(variantFileSamples []string) {
	present := make(map[string]bool, len(variantFileSamples))
	for _, id := range variantFileSamples {
		present[id] = true
	}
	var ids []string
	var rows []map[string]string
	for i, id := range m.ids {
		if present[id] {
			ids = append(ids, id)
			rows = append(rows, m.rows[i])
		}
	}
	m.ids, m.rows = ids, rows
}

// value returns the annotation for a sample id, or "" if unknown.
func (m *metadata) value(id, column string) string {
	for i, mid := range m.ids {
		if mid == id {
			return m.rows[i][column]
		}
	}
	return ""
}
