package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackb/modload/pkg/builtin"
)

func (a *app) newBuiltinsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "builtins",
		Short: "List the builtin modules and their members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.newLoader()
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())

			registry := l.Builtins()
			for _, name := range registry.Names() {
				_, value, _ := registry.Lookup(name)
				members := builtin.Members(value).Keys()
				fmt.Fprintf(a.stdout, "%s %s\n", styleURL.Render("builtin:"+name), styleDim.Render(strings.Join(members, " ")))
			}
			return nil
		},
	}
}
