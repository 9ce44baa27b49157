package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stackb/modload/pkg/module"
)

func (a *app) newImportCmd() *cobra.Command {
	var dump, tree bool
	cmd := &cobra.Command{
		Use:   "import SPECIFIER...",
		Short: "Load modules and print their exports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.newLoader()
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())

			namespaces := make([]*module.Namespace, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, spec := range args {
				g.Go(func() error {
					ns, err := l.Import(ctx, spec, a.from)
					if err != nil {
						return err
					}
					namespaces[i] = ns
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for i, ns := range namespaces {
				if tree {
					job, err := l.ModuleJob(cmd.Context(), args[i], a.from)
					if err != nil {
						return err
					}
					printTree(a.stdout, job)
					continue
				}
				a.printNamespace(ns, dump)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.from, "from", "", "referrer location (file path or URL); empty for entry points")
	cmd.Flags().BoolVar(&dump, "dump", false, "dump the Go representation of each export")
	cmd.Flags().BoolVar(&tree, "tree", false, "print the dependency tree instead of the exports")
	return cmd
}

func (a *app) printNamespace(ns *module.Namespace, dump bool) {
	fmt.Fprintln(a.stdout, styleURL.Render(ns.URL()))
	for _, name := range ns.Names() {
		v, ok := ns.Get(name)
		if !ok {
			fmt.Fprintf(a.stdout, "  %s %s\n", styleName.Render(name), styleDim.Render("<unset>"))
			continue
		}
		fmt.Fprintf(a.stdout, "  %s = %s\n", styleName.Render(name), v.String())
		if dump {
			fmt.Fprint(a.stdout, spew.Sdump(v))
		}
	}
}
