package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/recordfmt"
	"github.com/stellify/stellify/runtime/sink/file"
)

func newInspectCmd(g *globals) *cobra.Command {
	var render []string
	cmd := &cobra.Command{
		Use:   "inspect <bundle>",
		Short: "Validate a bundle file and print its record counts and fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := file.Read(args[0])
			if err != nil {
				return err
			}
			table := canon.Default()
			store, err := b.Store(table)
			if err != nil {
				return err
			}
			if err := graph.Validate(store); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fp, err := recordfmt.Shape(b, table)
			if err != nil {
				return err
			}

			st := b.Stats()
			_, _ = fmt.Fprintf(g.stdout, "format:      %s\n", b.Format)
			_, _ = fmt.Fprintf(g.stdout, "files:       %d\n", st.Files)
			_, _ = fmt.Fprintf(g.stdout, "methods:     %d\n", st.Routines)
			_, _ = fmt.Fprintf(g.stdout, "statements:  %d\n", st.Statements)
			_, _ = fmt.Fprintf(g.stdout, "clauses:     %d\n", st.Clauses)
			_, _ = fmt.Fprintf(g.stdout, "elements:    %d\n", st.Elements)
			_, _ = fmt.Fprintf(g.stdout, "fingerprint: %s\n", fp)

			for _, id := range render {
				if !store.Has(graph.ID(id)) {
					return &usageError{Message: fmt.Sprintf("no record %q", id)}
				}
				_, _ = fmt.Fprintf(g.stdout, "%s: %s\n", id, strings.Join(store.Render(graph.ID(id)), " "))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&render, "render", nil, "Print the tokens of these statement or clause ids")
	return cmd
}
