package domain

// Row is one flat export record. Column order is insertion order, so the
// first row of a dataset fixes the output header.
type Row struct {
	cols []string
	vals map[string]string
}

func NewRow() *Row { return &Row{vals: map[string]string{}} }

func (r *Row) Set(col, val string) *Row {
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = val
	return r
}

func (r *Row) Get(col string) string { return r.vals[col] }

func (r *Row) Columns() []string { return append([]string(nil), r.cols...) }

// Values returns the cells in the given column order; columns the row does
// not have come back empty.
func (r *Row) Values(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.vals[c]
	}
	return out
}
