// Package xtor computes aggregate transistor counts.
//
// The pipeline is strictly sequential:
//
//	table := Builder.Build(cdl document)   // one entry per subcircuit
//	CountInstances(table, verilog tree)    // the only mutation after building
//	Total(table)                           // pure fold
//
// The Table is owned by whoever runs the pipeline and is never shared
// between goroutines.
package xtor

import "sort"

// CellStat is the per-instance transistor cost of one subcircuit and the
// number of times it is instantiated.
type CellStat struct {
	Transistors int64 `json:"transistors"`
	Instances   int64 `json:"instances"`
}

// Table maps a subcircuit name (case-sensitive) to its CellStat. Every key
// was defined in a CDL document; entries are never removed.
type Table map[string]CellStat

// Names returns the subcircuit names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// increment bumps the instance count of name and reports whether name is
// a known subcircuit.
func (t Table) increment(name string) bool {
	st, ok := t[name]
	if !ok {
		return false
	}
	st.Instances++
	t[name] = st
	return true
}
