package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve SPECIFIER",
		Short: "Print the location and format a specifier resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.newLoader()
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())

			res, err := l.Resolve(cmd.Context(), args[0], a.from)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, styleURL.Render(res.URL.String()), styleFormat.Render(res.Format.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&a.from, "from", "", "referrer location (file path or URL); empty for an entry point")
	return cmd
}
