package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the snapshots were identical.
func (d Delta) Empty() bool {
	return d.Added.rows() == 0 && d.Removed.rows() == 0
}

func (t Tables) rows() int {
	return len(t.Files) + len(t.Subcircuits) + len(t.Modules) + len(t.Instances) + len(t.Cells)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffRows(from.Files, to.Files, func(r FileRow) string {
		return r.Path + "|" + r.Kind
	})
	out.Subcircuits = diffRows(from.Subcircuits, to.Subcircuits, func(r SubcircuitRow) string {
		return r.Name + "|" + r.File + "|" + intKey(r.Line) + "|" + intKey(r.Pins) + "|" + intKey(r.Elements) + "|" + intKey(r.Transistors)
	})
	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return r.Name + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Instances = diffRows(from.Instances, to.Instances, func(r InstanceRow) string {
		return r.Name + "|" + r.Target + "|" + r.Scope + "|" + r.Kind + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Cells = diffRows(from.Cells, to.Cells, func(r CellRow) string {
		return r.Name + "|" + int64Key(r.Transistors) + "|" + int64Key(r.Instances)
	})

	return out
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]bool, len(from))
	for _, row := range from {
		fromSet[key(row)] = true
	}
	diff := []T{}
	for _, row := range to {
		if !fromSet[key(row)] {
			diff = append(diff, row)
		}
	}
	return diff
}

func intKey(v int) string { return strconv.Itoa(v) }

func int64Key(v int64) string { return strconv.FormatInt(v, 10) }
