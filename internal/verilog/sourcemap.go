package verilog

import "sort"

// Segment maps a run of preprocessed text back to the file it came from.
type Segment struct {
	Start, End int // range in the preprocessed text
	Path       string
	Origin     int // offset in Path of the first byte
	// Exact segments copy source bytes one to one. Macro expansions are not
	// exact: every byte maps to the macro use site.
	Exact  bool
	Length int // length of the use site for inexact segments
}

// SourceMap translates preprocessed offsets into file offsets.
type SourceMap struct {
	Segments []Segment
	// Files holds the contents of every file read during preprocessing.
	Files map[string][]byte
}

func newSourceMap() *SourceMap {
	return &SourceMap{Files: make(map[string][]byte)}
}

func (m *SourceMap) addExact(start, end int, path string, origin int) {
	if start == end {
		return
	}
	if n := len(m.Segments); n > 0 {
		last := &m.Segments[n-1]
		if last.Exact && last.Path == path && last.End == start && last.Origin+(last.End-last.Start) == origin {
			last.End = end
			return
		}
	}
	m.Segments = append(m.Segments, Segment{Start: start, End: end, Path: path, Origin: origin, Exact: true})
}

func (m *SourceMap) addExpansion(start, end int, path string, origin, length int) {
	if start == end {
		return
	}
	m.Segments = append(m.Segments, Segment{Start: start, End: end, Path: path, Origin: origin, Length: length})
}

// Lookup returns the file and file offset of a preprocessed offset, and the
// number of bytes a span of length n covers there.
func (m *SourceMap) Lookup(offset, n int) (path string, origin, length int, ok bool) {
	if m == nil {
		return "", 0, 0, false
	}
	i := sort.Search(len(m.Segments), func(i int) bool { return m.Segments[i].End > offset })
	if i == len(m.Segments) || m.Segments[i].Start > offset {
		return "", 0, 0, false
	}
	seg := m.Segments[i]
	if !seg.Exact {
		return seg.Path, seg.Origin, seg.Length, true
	}
	origin = seg.Origin + offset - seg.Start
	return seg.Path, origin, min(n, seg.End-offset), true
}
