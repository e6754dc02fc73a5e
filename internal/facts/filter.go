package facts

// FilterTablesByCells returns a new Tables object containing only rows about
// the named cells: their definitions, their instances and their counts.
// Files are kept when a remaining row refers to them.
func FilterTablesByCells(tables Tables, cells map[string]bool) Tables {
	out := emptyTables()
	if len(cells) == 0 {
		return out
	}
	files := make(map[string]bool)

	for _, row := range tables.Subcircuits {
		if cells[row.Name] {
			out.Subcircuits = append(out.Subcircuits, row)
			files[row.File] = true
		}
	}
	for _, row := range tables.Modules {
		if cells[row.Name] {
			out.Modules = append(out.Modules, row)
			files[row.File] = true
		}
	}
	for _, row := range tables.Instances {
		if cells[row.Target] {
			out.Instances = append(out.Instances, row)
			files[row.File] = true
		}
	}
	for _, row := range tables.Cells {
		if cells[row.Name] {
			out.Cells = append(out.Cells, row)
		}
	}
	for _, row := range tables.Files {
		if files[row.Path] {
			out.Files = append(out.Files, row)
		}
	}

	return out
}

// FilterDeltaByCells returns a new Delta containing only rows for the specified cells.
func FilterDeltaByCells(delta Delta, cells map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByCells(delta.Added, cells),
		Removed: FilterTablesByCells(delta.Removed, cells),
	}
}
