package xtor

import (
	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
)

// CountStats summarizes one counting pass.
type CountStats struct {
	Matched    int // instantiations of a subcircuit in the table
	Unknown    int // instantiations of modules the table does not know
	Unresolved int // instantiations whose module name could not be read
	// UnknownNames counts instantiations per unknown module name.
	UnknownNames map[string]int
}

// CountInstances increments the instance count of every subcircuit
// instantiated in tree, at any depth of the hierarchy. One instantiation
// statement counts once, however many instances it declares. Unknown and
// unreadable module names are skipped.
func CountInstances(t Table, tree *verilog.Tree) CountStats {
	st := CountStats{UnknownNames: make(map[string]int)}
	for n := range tree.All() {
		if n.Kind != verilog.ModuleInstantiation {
			continue
		}
		name, ok := tree.ModuleName(n)
		if !ok {
			st.Unresolved++
			continue
		}
		if t.increment(name) {
			st.Matched++
			continue
		}
		st.Unknown++
		st.UnknownNames[name]++
	}
	return st
}
