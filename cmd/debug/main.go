// Command debug prints the syntax tree of a netlist, for investigating
// what the parser makes of a construct.
//
//	debug [-I dir] [-D NAME[=VALUE]] [--kind ModuleInstantiation] [--text] top.v
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/robert-at-pretension-io/xtorcount/internal/position"
	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
)

const maxExcerpt = 60

func main() {
	fs := pflag.NewFlagSet("debug", pflag.ExitOnError)
	includes := fs.StringSliceP("include", "I", nil, "include directory")
	defines := fs.StringSliceP("define", "D", nil, "predefine a macro as `NAME[=VALUE]`")
	kind := fs.String("kind", "", "only print subtrees rooted at nodes of this kind")
	text := fs.Bool("text", false, "print the preprocessed text instead of the tree")
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: debug [-I dir] [-D NAME[=VALUE]] [--kind KIND] [--text] <netlist>")
		os.Exit(1)
	}

	defs := make(map[string]string)
	for _, d := range *defines {
		name, value, _ := strings.Cut(d, "=")
		defs[name] = value
	}

	tree, err := verilog.ParseFile(fs.Arg(0), verilog.Options{IncludeDirs: *includes, Defines: defs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *text {
		fmt.Print(tree.Text)
		return
	}
	if err := dump(os.Stdout, tree, *kind); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dump prints tree one node per line, indented by depth. With a kind only
// the subtrees rooted at that kind are printed.
func dump(w io.Writer, tree *verilog.Tree, kind string) error {
	if tree.Root == nil {
		return nil
	}
	if kind == "" {
		printNode(w, tree, tree.Root, 0)
		return nil
	}

	found := false
	verilog.Walk(tree.Root, func(n *verilog.Node) bool {
		if n.Kind.String() != kind {
			return true
		}
		found = true
		printNode(w, tree, n, 0)
		return false
	})
	if !found {
		return fmt.Errorf("no %s node found", kind)
	}
	return nil
}

func printNode(w io.Writer, tree *verilog.Tree, n *verilog.Node, depth int) {
	loc := ""
	if path, offset, _, ok := tree.Origin(n.Loc); ok {
		loc = fmt.Sprintf(" %s:%d", path, position.LineOf(tree.Map.Files[path], offset))
	}
	excerpt := ""
	if s, ok := tree.Get(n.Loc); ok {
		if len(s) > maxExcerpt {
			s = s[:maxExcerpt] + "..."
		}
		excerpt = fmt.Sprintf(" %q", s)
	}
	fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat("  ", depth), n.Kind, loc, excerpt)
	for _, c := range n.Children {
		printNode(w, tree, c, depth+1)
	}
}
