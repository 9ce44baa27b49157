package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/stackb/modload/pkg/loader"
)

type boxType int

const (
	regular boxType = iota
	last
	afterLast
	between
)

func (b boxType) String() string {
	switch b {
	case regular:
		return "├"
	case last:
		return "└"
	case afterLast:
		return " "
	default:
		return "│"
	}
}

func childBox(index, n int) boxType {
	if index+1 == n {
		return last
	}
	return regular
}

func indentBox(index, n int) boxType {
	if index+1 == n {
		return afterLast
	}
	return between
}

// printTree writes the dependency tree of job.  A module already printed on
// the current path is marked as a cycle and not expanded.
func printTree(w io.Writer, job *loader.ModuleJob) {
	printTreeNode(w, "", job.URL().String(), job, map[*loader.ModuleJob]bool{})
}

func printTreeNode(w io.Writer, prefix, label string, job *loader.ModuleJob, path map[*loader.ModuleJob]bool) {
	suffix := styleDim.Render(" " + job.Format().String() + " " + job.State().String())
	if path[job] {
		fmt.Fprintln(w, styleURL.Render(label)+styleDim.Render(" (cycle)"))
		return
	}
	fmt.Fprintln(w, styleURL.Render(label)+suffix)

	deps := job.Dependencies()
	specs := make([]string, 0, len(deps))
	for spec := range deps {
		specs = append(specs, spec)
	}
	sort.Strings(specs)

	path[job] = true
	defer delete(path, job)
	for i, spec := range specs {
		fmt.Fprint(w, prefix+childBox(i, len(specs)).String()+" ")
		childPrefix := prefix + indentBox(i, len(specs)).String() + " "
		printTreeNode(w, childPrefix, spec, deps[spec], path)
	}
}
