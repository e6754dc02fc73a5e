package xtor

// Total returns the sum over t of transistors times instances.
func Total(t Table) int64 {
	var total int64
	for _, st := range t {
		total += st.Transistors * st.Instances
	}
	return total
}

// Row is one line of the per-cell report.
type Row struct {
	Name        string `json:"name"`
	Transistors int64  `json:"transistors"`
	Instances   int64  `json:"instances"`
	Subtotal    int64  `json:"subtotal"`
}

// Rows returns one row per subcircuit, sorted by name.
func Rows(t Table) []Row {
	rows := make([]Row, 0, len(t))
	for _, name := range t.Names() {
		st := t[name]
		rows = append(rows, Row{
			Name:        name,
			Transistors: st.Transistors,
			Instances:   st.Instances,
			Subtotal:    st.Transistors * st.Instances,
		})
	}
	return rows
}
