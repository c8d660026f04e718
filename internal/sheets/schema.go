package sheets

// rowSchema maps header names to column indexes, computed once per sheet
// load, so cells are addressed by name instead of position guessing.
type rowSchema struct {
	index map[string]int
}

func newRowSchema(header []string) rowSchema {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return rowSchema{index: idx}
}

func (r rowSchema) col(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

func (r rowSchema) cell(row []string, name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
